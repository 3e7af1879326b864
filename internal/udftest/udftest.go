// Package udftest holds reference guest functions covering every outcome of
// the guest failure policy. The same functions back the in-process test
// sandboxes and the wasip1 example guest.
package udftest

import (
	"errors"
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/wippyai/wasm-udf/guest"
)

// ErrDivideByZero is the computation error raised by Divide.
var ErrDivideByZero = errors.New("Divide by zero error")

// Pow computes base^exponent element-wise. Nulls propagate.
func Pow(args []arrow.Array) (arrow.Array, error) {
	base, exponent, err := float64Pair("pow", args)
	if err != nil {
		return nil, err
	}

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(base.Len())

	for i := 0; i < base.Len(); i++ {
		if base.IsNull(i) || exponent.IsNull(i) {
			b.AppendNull()
			continue
		}
		b.Append(math.Pow(base.Value(i), exponent.Value(i)))
	}
	return b.NewArray(), nil
}

// Sqrt returns null for negative inputs instead of failing the call.
func Sqrt(args []arrow.Array) (arrow.Array, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("sqrt: expected 1 argument, got %d", len(args))
	}
	in, ok := args[0].(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("sqrt: expected float64, got %s", args[0].DataType())
	}

	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(in.Len())

	for i := 0; i < in.Len(); i++ {
		if in.IsNull(i) || in.Value(i) < 0 {
			b.AppendNull()
			continue
		}
		b.Append(math.Sqrt(in.Value(i)))
	}
	return b.NewArray(), nil
}

// Divide divides two int64 columns and fails on a zero divisor.
func Divide(args []arrow.Array) (arrow.Array, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("divide: expected 2 arguments, got %d", len(args))
	}
	lhs, ok1 := args[0].(*array.Int64)
	rhs, ok2 := args[1].(*array.Int64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("divide: expected int64 arguments")
	}

	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.Reserve(lhs.Len())

	for i := 0; i < lhs.Len(); i++ {
		if lhs.IsNull(i) || rhs.IsNull(i) {
			b.AppendNull()
			continue
		}
		if rhs.Value(i) == 0 {
			return nil, ErrDivideByZero
		}
		b.Append(lhs.Value(i) / rhs.Value(i))
	}
	return b.NewArray(), nil
}

// Fail always signals an explicit application error.
func Fail(args []arrow.Array) (arrow.Array, error) {
	return nil, guest.Errorf("bad input")
}

// Boom aborts the call.
func Boom(args []arrow.Array) (arrow.Array, error) {
	panic("boom")
}

func float64Pair(name string, args []arrow.Array) (*array.Float64, *array.Float64, error) {
	if len(args) != 2 {
		return nil, nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	a, ok1 := args[0].(*array.Float64)
	b, ok2 := args[1].(*array.Float64)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("%s: expected float64 arguments", name)
	}
	if a.Len() != b.Len() {
		return nil, nil, fmt.Errorf("%s: argument lengths differ", name)
	}
	return a, b, nil
}

// Register exports every reference function into r.
func Register(r *guest.Registry) {
	r.Export("pow", Pow)
	r.Export("f1", Pow)
	r.Export("sqrt", Sqrt)
	r.Export("divide", Divide)
	r.Export("fail", Fail)
	r.Export("boom", Boom)
}

// Registry returns a fresh registry holding the reference functions.
func Registry() *guest.Registry {
	r := guest.NewRegistry()
	Register(r)
	return r
}
