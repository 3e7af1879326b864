//go:build wasip1

package guest

import (
	"unsafe"

	"github.com/wippyai/wasm-udf/abi"
)

// pinned keeps buffers shared with the host reachable until the host frees
// them. The Go GC does not see pointers held by the host.
var pinned = map[uint32][]byte{}

func pin(buf []byte) uint32 {
	if len(buf) == 0 {
		buf = make([]byte, 1)
	}
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	pinned[ptr] = buf
	return ptr
}

//go:wasmexport __wasm_udf_alloc
func alloc(size uint32) uint32 {
	return pin(make([]byte, size))
}

//go:wasmexport __wasm_udf_free
func free(ptr, size uint32) {
	delete(pinned, ptr)
}

// Call runs the function registered under name on the argument batch at
// ptr and returns the packed pointer and length of the response frame. It is
// the whole body of a //go:wasmexport __wasm_udf_<name> shim.
func Call(ptr, size uint32, name string) uint64 {
	in := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size)

	var out []byte
	if h, ok := defaultRegistry.Handler(name); ok {
		out = h(in)
	} else {
		out = abi.EncodeResponse(abi.StatusComputation, []byte("function "+name+" is not exported"))
	}
	return abi.PackPtrLen(pin(out), uint32(len(out)))
}
