package guest_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/codec"
	"github.com/wippyai/wasm-udf/guest"
	"github.com/wippyai/wasm-udf/internal/udftest"
)

func encodeArgs(t *testing.T, cols ...arrow.Array) []byte {
	t.Helper()
	types := make([]arrow.DataType, len(cols))
	for i, c := range cols {
		types[i] = c.DataType()
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

func decodeFrame(t *testing.T, frame []byte) (abi.Status, []byte) {
	t.Helper()
	status, payload, err := abi.DecodeResponse(frame)
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	return status, payload
}

func TestHandle_Success(t *testing.T) {
	base := udftest.Float64s([]float64{2, 3, 0}, []bool{true, true, false})
	exp := udftest.Float64s([]float64{10, 2, 1}, nil)
	defer base.Release()
	defer exp.Release()

	status, payload := decodeFrame(t, guest.Handle(udftest.Pow, encodeArgs(t, base, exp)))
	if status != abi.StatusOK {
		t.Fatalf("status = %s, payload %q", status, payload)
	}

	rec, err := codec.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	defer rec.Release()

	if rec.Schema().Field(0).Name != codec.ResultField {
		t.Errorf("result field = %q", rec.Schema().Field(0).Name)
	}
	col := rec.Column(0).(*array.Float64)
	if col.Len() != 3 {
		t.Fatalf("rows = %d, want 3", col.Len())
	}
	if got := []float64{col.Value(0), col.Value(1)}; !cmp.Equal(got, []float64{1024, 9}) {
		t.Errorf("values = %v", got)
	}
	if !col.IsNull(2) {
		t.Error("row 2 should be null")
	}
}

func TestHandle_Failures(t *testing.T) {
	a := udftest.Int64s([]int64{1, 2}, nil)
	zero := udftest.Int64s([]int64{1, 0}, nil)
	defer a.Release()
	defer zero.Release()

	short := func(args []arrow.Array) (arrow.Array, error) {
		return udftest.Int64s([]int64{1}, nil), nil
	}
	none := func(args []arrow.Array) (arrow.Array, error) {
		return nil, nil
	}
	wrapped := func(args []arrow.Array) (arrow.Array, error) {
		return nil, errors.Join(errors.New("context"), guest.Errorf("wrapped %d", 7))
	}

	tests := []struct {
		name    string
		fn      guest.Func
		in      []byte
		status  abi.Status
		message string
	}{
		{"reported", udftest.Fail, encodeArgs(t, a), abi.StatusReported, "bad input"},
		{"reported wrapped", wrapped, encodeArgs(t, a), abi.StatusReported, "wrapped 7"},
		{"computation", udftest.Divide, encodeArgs(t, a, zero), abi.StatusComputation, "Divide by zero error"},
		{"no result", none, encodeArgs(t, a), abi.StatusComputation, "function returned no result"},
		{"row mismatch", short, encodeArgs(t, a), abi.StatusComputation, "function returned 1 rows, want 2"},
		{"malformed input", udftest.Pow, []byte("not arrow"), abi.StatusCodec, "decode"},
		{"empty input", udftest.Pow, nil, abi.StatusCodec, "empty payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := decodeFrame(t, guest.Handle(tt.fn, tt.in))
			if status != tt.status {
				t.Errorf("status = %s, want %s", status, tt.status)
			}
			if !strings.Contains(string(payload), tt.message) {
				t.Errorf("payload %q does not contain %q", payload, tt.message)
			}
		})
	}
}

func TestHandle_PanicPropagates(t *testing.T) {
	a := udftest.Int64s([]int64{1}, nil)
	defer a.Release()
	in := encodeArgs(t, a)

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recovered %v, want boom", r)
		}
	}()
	guest.Handle(udftest.Boom, in)
	t.Fatal("Handle returned after panic")
}

func TestRegistry(t *testing.T) {
	r := guest.NewRegistry()
	r.Export("pow", udftest.Pow)
	r.Export("divide", udftest.Divide)

	if diff := cmp.Diff([]string{"divide", "pow"}, r.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	want := []string{"__wasm_udf_divide", "__wasm_udf_pow"}
	if diff := cmp.Diff(want, r.Symbols()); diff != "" {
		t.Errorf("Symbols mismatch (-want +got):\n%s", diff)
	}

	if _, ok := r.Lookup("missing"); ok {
		t.Error("Lookup(missing) should fail")
	}
	if _, ok := r.Handler("missing"); ok {
		t.Error("Handler(missing) should fail")
	}

	h, ok := r.Handler("divide")
	if !ok {
		t.Fatal("Handler(divide) not found")
	}
	a := udftest.Int64s([]int64{9}, nil)
	b := udftest.Int64s([]int64{3}, nil)
	defer a.Release()
	defer b.Release()

	status, payload := decodeFrame(t, h(encodeArgs(t, a, b)))
	if status != abi.StatusOK {
		t.Fatalf("status = %s, payload %q", status, payload)
	}
}

func TestRegistry_ExportReplaces(t *testing.T) {
	r := guest.NewRegistry()
	r.Export("f", udftest.Fail)
	r.Export("f", udftest.Pow)

	if got := len(r.Names()); got != 1 {
		t.Errorf("len(Names) = %d, want 1", got)
	}
}
