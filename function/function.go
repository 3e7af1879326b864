package function

import (
	"context"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/wippyai/wasm-udf/errors"
)

// Volatility describes how a function's output depends on its inputs.
type Volatility int

const (
	// Immutable functions always return the same output for the same input.
	Immutable Volatility = iota
	// Stable functions return the same output within one query.
	Stable
	// Volatile functions may return different output on every call.
	Volatile
)

func (v Volatility) String() string {
	switch v {
	case Immutable:
		return "immutable"
	case Stable:
		return "stable"
	case Volatile:
		return "volatile"
	}
	return "unknown"
}

// Signature is the exact argument list a function accepts.
type Signature struct {
	Types      []arrow.DataType
	Volatility Volatility
}

// Exact returns a signature accepting exactly types.
func Exact(types []arrow.DataType, volatility Volatility) Signature {
	return Signature{Types: types, Volatility: volatility}
}

func (s Signature) String() string {
	parts := make([]string, len(s.Types))
	for i, t := range s.Types {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Check validates args against the signature: arity, exact types, and equal
// column lengths. name is used in error messages.
func (s Signature) Check(name string, args []arrow.Array) error {
	if len(args) != len(s.Types) {
		return errors.Arity(name, len(s.Types), len(args))
	}
	for i, arg := range args {
		if arg == nil {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Function(name).
				Detail("argument %d is nil", i).
				Build()
		}
		if !arrow.TypeEqual(s.Types[i], arg.DataType()) {
			return errors.TypeMismatch(name, i, s.Types[i].String(), arg.DataType().String())
		}
		if arg.Len() != args[0].Len() {
			return errors.New(errors.PhaseValidate, errors.KindInvalidData).
				Function(name).
				Detail("argument %d has %d rows, want %d", i, arg.Len(), args[0].Len()).
				Build()
		}
	}
	return nil
}

// Scalar is a function producing one output value per input row.
type Scalar interface {
	Name() string
	Signature() Signature
	// ReturnType returns the output type for the given argument types.
	ReturnType(argTypes []arrow.DataType) (arrow.DataType, error)
	// Invoke evaluates the function over equal-length columns. The caller owns
	// the returned array and must Release it.
	Invoke(ctx context.Context, args []arrow.Array) (arrow.Array, error)
	Close(ctx context.Context) error
}

// Arg is one declared argument. Name is optional.
type Arg struct {
	Type arrow.DataType
	Name string
}

// Definition is a parsed CREATE FUNCTION statement.
type Definition struct {
	ReturnType arrow.DataType
	Name       string
	Language   string
	// Body is the language-specific definition string.
	Body      string
	Args      []Arg
	OrReplace bool
}

// ArgTypes returns the declared argument types in order.
func (d Definition) ArgTypes() []arrow.DataType {
	types := make([]arrow.DataType, len(d.Args))
	for i, a := range d.Args {
		types[i] = a.Type
	}
	return types
}

// Factory creates scalar functions for one language.
type Factory interface {
	Create(ctx context.Context, def Definition) (Scalar, error)
}
