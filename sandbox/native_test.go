package sandbox

import (
	"context"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/codec"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/internal/udftest"
)

func encodeInt64s(t *testing.T, vals ...[]int64) []byte {
	t.Helper()
	cols := make([]arrow.Array, len(vals))
	types := make([]arrow.DataType, len(vals))
	for i, v := range vals {
		cols[i] = udftest.Int64s(v, nil)
		defer cols[i].Release()
		types[i] = arrow.PrimitiveTypes.Int64
	}
	rec, err := codec.Pack(codec.ArgumentSchema(types), cols)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	defer rec.Release()
	data, err := codec.Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestNative_Call(t *testing.T) {
	n := NewNativeFromRegistry("reference", udftest.Registry())

	status, _ := call(t, n, "divide", encodeInt64s(t, []int64{6}, []int64{3}))
	if status != abi.StatusOK {
		t.Errorf("divide status = %s", status)
	}
	status, msg := call(t, n, "divide", encodeInt64s(t, []int64{6}, []int64{0}))
	if status != abi.StatusComputation || msg != "Divide by zero error" {
		t.Errorf("divide by zero = %s %q", status, msg)
	}
	status, msg = call(t, n, "fail", encodeInt64s(t, []int64{1}))
	if status != abi.StatusReported || msg != "bad input" {
		t.Errorf("fail = %s %q", status, msg)
	}
}

func TestNative_PanicIsTrap(t *testing.T) {
	n := NewNativeFromRegistry("reference", udftest.Registry())
	ctx := context.Background()

	_, err := n.Call(ctx, abi.ExportName("boom"), encodeInt64s(t, []int64{1}))
	var trap *TrapError
	if !errors.As(err, &trap) {
		t.Fatalf("expected TrapError, got %v", err)
	}
	if trap.Reason != "boom" {
		t.Errorf("Reason = %q", trap.Reason)
	}

	status, _ := call(t, n, "divide", encodeInt64s(t, []int64{4}, []int64{2}))
	if status != abi.StatusOK {
		t.Errorf("divide after panic = %s", status)
	}
}

func TestNative_Exports(t *testing.T) {
	n := NewNative("custom")
	n.Export("__wasm_udf_echo", func(in []byte) []byte {
		return abi.EncodeResponse(abi.StatusOK, in)
	})

	if !n.HasExport("__wasm_udf_echo") || n.HasExport("__wasm_udf_other") {
		t.Errorf("HasExport mismatch, exports %v", n.Exports())
	}

	_, err := n.Call(context.Background(), "__wasm_udf_other", nil)
	if !errors.Is(err, &errors.Error{Kind: errors.KindMissingExport}) {
		t.Errorf("missing export: got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Call(ctx, "__wasm_udf_echo", nil)
	var trap *TrapError
	if !errors.Is(err, context.Canceled) || errors.As(err, &trap) {
		t.Errorf("cancelled call: got %v, want context.Canceled", err)
	}

	if err := n.CheckExport("__wasm_udf_echo"); err != nil {
		t.Errorf("CheckExport(echo): %v", err)
	}
	if err := n.CheckExport("__wasm_udf_other"); !errors.Is(err, &errors.Error{Kind: errors.KindMissingExport}) {
		t.Errorf("CheckExport(other): got %v", err)
	}
}
