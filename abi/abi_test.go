package abi

import (
	"bytes"
	"testing"
)

func TestExportName(t *testing.T) {
	if got := ExportName("f1"); got != "__wasm_udf_f1" {
		t.Fatalf("ExportName = %q", got)
	}

	tests := []struct {
		symbol string
		name   string
		ok     bool
	}{
		{"__wasm_udf_f1", "f1", true},
		{"__wasm_udf_pow", "pow", true},
		{"__wasm_udf_", "", false},
		{"__wasm_udf_alloc", "", false},
		{"__wasm_udf_free", "", false},
		{"memory", "", false},
		{"f1", "", false},
	}
	for _, tt := range tests {
		name, ok := FunctionName(tt.symbol)
		if name != tt.name || ok != tt.ok {
			t.Errorf("FunctionName(%q) = %q, %v; want %q, %v", tt.symbol, name, ok, tt.name, tt.ok)
		}
	}
}

func TestResponseFrame(t *testing.T) {
	tests := []struct {
		status  Status
		payload []byte
	}{
		{StatusOK, []byte{1, 2, 3}},
		{StatusReported, []byte("bad input")},
		{StatusComputation, []byte("Divide by zero error")},
		{StatusCodec, nil},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			frame := EncodeResponse(tt.status, tt.payload)
			status, payload, err := DecodeResponse(frame)
			if err != nil {
				t.Fatal(err)
			}
			if status != tt.status {
				t.Errorf("status = %v, want %v", status, tt.status)
			}
			if !bytes.Equal(payload, tt.payload) {
				t.Errorf("payload = %q, want %q", payload, tt.payload)
			}
		})
	}
}

func TestDecodeResponse_Invalid(t *testing.T) {
	if _, _, err := DecodeResponse(nil); err == nil {
		t.Error("expected error for empty frame")
	}
	if _, _, err := DecodeResponse([]byte{9, 'x'}); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestPackPtrLen(t *testing.T) {
	v := PackPtrLen(16, 10)
	if v != 16<<32|10 {
		t.Fatalf("PackPtrLen = %#x", v)
	}
	ptr, n := UnpackPtrLen(v)
	if ptr != 16 || n != 10 {
		t.Errorf("UnpackPtrLen = %d, %d", ptr, n)
	}

	ptr, n = UnpackPtrLen(PackPtrLen(0xFFFFFFFF, 0xFFFFFFFF))
	if ptr != 0xFFFFFFFF || n != 0xFFFFFFFF {
		t.Errorf("max values lost: %#x, %#x", ptr, n)
	}
}
