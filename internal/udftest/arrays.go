package udftest

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Float64s builds a float64 array. A nil valid slice means no nulls.
func Float64s(vals []float64, valid []bool) arrow.Array {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

// Int64s builds an int64 array. A nil valid slice means no nulls.
func Int64s(vals []int64, valid []bool) arrow.Array {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, valid)
	return b.NewArray()
}

// Strings builds a utf8 array.
func Strings(vals ...string) arrow.Array {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewArray()
}

// Float64Values returns the values of a float64 array; nulls read as NaN.
func Float64Values(a arrow.Array) []float64 {
	f := a.(*array.Float64)
	out := make([]float64, f.Len())
	for i := range out {
		if f.IsNull(i) {
			out[i] = math.NaN()
			continue
		}
		out[i] = f.Value(i)
	}
	return out
}
