package abi

import (
	"fmt"
	"strings"
)

const (
	// ExportPrefix is prepended to a declared function name to form the
	// guest export symbol.
	ExportPrefix = "__wasm_udf_"

	AllocExport = ExportPrefix + "alloc"
	FreeExport  = ExportPrefix + "free"
)

// Fallback memory management exports of common guest toolchains.
var (
	AllocFallbacks = []string{"alloc", "allocate", "malloc"}
	FreeFallbacks  = []string{"free", "deallocate"}
)

// ExportName returns the guest symbol for a declared function name.
func ExportName(name string) string {
	return ExportPrefix + name
}

// FunctionName reverses ExportName. It reports false for symbols outside the
// convention and for the memory management exports.
func FunctionName(symbol string) (string, bool) {
	if symbol == AllocExport || symbol == FreeExport {
		return "", false
	}
	name, ok := strings.CutPrefix(symbol, ExportPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Status is the first byte of a response frame.
type Status byte

const (
	StatusOK Status = iota
	StatusReported
	StatusComputation
	StatusCodec
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusReported:
		return "reported"
	case StatusComputation:
		return "computation"
	case StatusCodec:
		return "codec"
	default:
		return fmt.Sprintf("status(%d)", byte(s))
	}
}

// EncodeResponse builds a response frame.
func EncodeResponse(status Status, payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = byte(status)
	copy(out[1:], payload)
	return out
}

// DecodeResponse splits a response frame. The payload aliases frame.
func DecodeResponse(frame []byte) (Status, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, fmt.Errorf("empty response frame")
	}
	status := Status(frame[0])
	if status > StatusCodec {
		return 0, nil, fmt.Errorf("unknown response status %d", frame[0])
	}
	return status, frame[1:], nil
}

// PackPtrLen packs a guest pointer and length into a single i64 result.
func PackPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// UnpackPtrLen reverses PackPtrLen.
func UnpackPtrLen(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
