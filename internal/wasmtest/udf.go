package wasmtest

import (
	"github.com/wippyai/wasm-udf/abi"
)

// Fixed response frames placed in the data section.
const (
	FailMessage   = "bad input"
	DivideMessage = "Divide by zero error"

	// FreeCountOffset holds the i32 number of calls to the free export.
	FreeCountOffset = 8

	failOffset    = 16
	divideOffset  = 64
	garbageOffset = 128
	heapBase      = 1024

	// BadPointer is the out-of-range address returned by the badptr export.
	BadPointer = 0xFFFF0000
)

// Function names exported by UDFModule, each under abi.ExportName.
const (
	Identity = "identity"
	Fail     = "fail"
	Divide   = "divide"
	Boom     = "boom"
	DivTrap  = "div_trap"
	BadPtr   = "badptr"
	Garbage  = "garbage"
	Spin     = "spin"
)

// BadSig is exported under abi.ExportName with an (i32) -> i32 signature
// instead of the call signature.
const BadSig = "badsig"

// Names lists every function exported by UDFModule with the call signature,
// in sorted order.
var Names = []string{BadPtr, Boom, DivTrap, Divide, Fail, Garbage, Identity, Spin}

const (
	typeCall  = 0 // (ptr i32, len i32) -> i64
	typeAlloc = 1 // (size i32) -> i32
	typeFree  = 2 // (ptr i32, size i32)

	funcAlloc = 0
	funcFree  = 1
)

// Options controls the memory-management exports of a generated module.
// An empty name omits that export. TrapFree makes free hit unreachable.
type Options struct {
	Alloc    string
	Free     string
	TrapFree bool
}

// UDFModule returns a guest module that uses the standard alloc and free
// export names.
func UDFModule() []byte {
	return Build(Options{Alloc: abi.AllocExport, Free: abi.FreeExport})
}

// Build assembles the test guest with the given memory-management exports.
//
// identity echoes its argument batch back as a successful result. fail and
// divide return fixed reported and computation frames. boom corrupts the
// allocator before trapping, so the next call only succeeds on a fresh
// instance. div_trap divides by zero. badptr returns an out-of-range result
// pointer. garbage returns a successful frame that is not an Arrow stream.
// spin never returns. badsig is not callable through the ABI. free counts
// its calls at FreeCountOffset.
func Build(opts Options) []byte {
	m := &module{
		types: []funcType{
			typeCall:  {params: []byte{valI32, valI32}, results: []byte{valI64}},
			typeAlloc: {params: []byte{valI32}, results: []byte{valI32}},
			typeFree:  {params: []byte{valI32, valI32}},
		},
		memPages: 16,
		heapBase: heapBase,
	}

	m.funcs = append(m.funcs, allocFunc(), freeFunc(opts.TrapFree))

	m.exports = append(m.exports, export{name: "memory", kind: kindMemory})
	if opts.Alloc != "" {
		m.exports = append(m.exports, export{name: opts.Alloc, kind: kindFunc, idx: funcAlloc})
	}
	if opts.Free != "" {
		m.exports = append(m.exports, export{name: opts.Free, kind: kindFunc, idx: funcFree})
	}

	m.addCall(Identity, identityFunc())
	m.addCall(Fail, constFunc(failOffset, 1+len(FailMessage)))
	m.addCall(Divide, constFunc(divideOffset, 1+len(DivideMessage)))
	m.addCall(Boom, boomFunc())
	m.addCall(DivTrap, divTrapFunc())
	m.addCall(BadPtr, constFunc(BadPointer, 16))
	m.addCall(Garbage, constFunc(garbageOffset, 1+len("not arrow")))
	m.addCall(Spin, spinFunc())
	m.addCall(BadSig, badSigFunc())

	m.data = []dataSegment{
		{offset: failOffset, data: frame(abi.StatusReported, FailMessage)},
		{offset: divideOffset, data: frame(abi.StatusComputation, DivideMessage)},
		{offset: garbageOffset, data: frame(abi.StatusOK, "not arrow")},
	}

	return m.encode()
}

func (m *module) addCall(name string, fn function) {
	m.exports = append(m.exports, export{
		name: abi.ExportName(name),
		kind: kindFunc,
		idx:  uint32(len(m.funcs)),
	})
	m.funcs = append(m.funcs, fn)
}

func frame(status abi.Status, msg string) []byte {
	return abi.EncodeResponse(status, []byte(msg))
}

// allocFunc bumps the heap global and returns its previous value.
func allocFunc() function {
	var b writer
	b.byte(opGlobalGet)
	b.u32(0)
	b.byte(opLocalSet)
	b.u32(1)
	b.byte(opGlobalGet)
	b.u32(0)
	b.byte(opLocalGet)
	b.u32(0)
	b.byte(opI32Add)
	b.byte(opGlobalSet)
	b.u32(0)
	b.byte(opLocalGet)
	b.u32(1)
	return function{typeIdx: typeAlloc, locals: []byte{valI32}, body: b.buf.Bytes()}
}

// freeFunc increments the counter at FreeCountOffset.
func freeFunc(trap bool) function {
	var b writer
	if trap {
		b.byte(opUnreachable)
		return function{typeIdx: typeFree, body: b.buf.Bytes()}
	}
	b.byte(opI32Const)
	b.s32(FreeCountOffset)
	b.byte(opI32Const)
	b.s32(FreeCountOffset)
	b.byte(opI32Load, 0x02, 0x00)
	b.byte(opI32Const)
	b.s32(1)
	b.byte(opI32Add)
	b.byte(opI32Store, 0x02, 0x00)
	return function{typeIdx: typeFree, body: b.buf.Bytes()}
}

func badSigFunc() function {
	var b writer
	b.byte(opLocalGet)
	b.u32(0)
	return function{typeIdx: typeAlloc, body: b.buf.Bytes()}
}

// identityFunc copies the input after a zero status byte.
func identityFunc() function {
	var b writer
	// out = alloc(len + 1)
	b.byte(opLocalGet)
	b.u32(1)
	b.byte(opI32Const)
	b.s32(1)
	b.byte(opI32Add)
	b.byte(opCall)
	b.u32(funcAlloc)
	b.byte(opLocalSet)
	b.u32(2)
	// out[0] = 0
	b.byte(opLocalGet)
	b.u32(2)
	b.byte(opI32Const)
	b.s32(0)
	b.byte(opI32Store8, 0x00, 0x00)
	// memory.copy(out+1, ptr, len)
	b.byte(opLocalGet)
	b.u32(2)
	b.byte(opI32Const)
	b.s32(1)
	b.byte(opI32Add)
	b.byte(opLocalGet)
	b.u32(0)
	b.byte(opLocalGet)
	b.u32(1)
	b.byte(opPrefixFC)
	b.u32(opMemoryCopy)
	b.byte(0x00, 0x00)
	// (out << 32) | (len + 1)
	b.byte(opLocalGet)
	b.u32(2)
	b.byte(opI64ExtendI32U)
	b.byte(opI64Const)
	b.s64(32)
	b.byte(opI64Shl)
	b.byte(opLocalGet)
	b.u32(1)
	b.byte(opI32Const)
	b.s32(1)
	b.byte(opI32Add)
	b.byte(opI64ExtendI32U)
	b.byte(opI64Or)
	return function{typeIdx: typeCall, locals: []byte{valI32}, body: b.buf.Bytes()}
}

func constFunc(ptr uint32, length int) function {
	var b writer
	b.byte(opI64Const)
	b.s64(int64(abi.PackPtrLen(ptr, uint32(length))))
	return function{typeIdx: typeCall, body: b.buf.Bytes()}
}

func boomFunc() function {
	var b writer
	b.byte(opI32Const)
	b.s32(-16)
	b.byte(opGlobalSet)
	b.u32(0)
	b.byte(opUnreachable)
	return function{typeIdx: typeCall, body: b.buf.Bytes()}
}

func divTrapFunc() function {
	var b writer
	b.byte(opI32Const)
	b.s32(1)
	b.byte(opI32Const)
	b.s32(0)
	b.byte(opI32DivS)
	b.byte(opDrop)
	b.byte(opI64Const)
	b.s64(0)
	return function{typeIdx: typeCall, body: b.buf.Bytes()}
}

func spinFunc() function {
	var b writer
	b.byte(opLoop, blockEmpty)
	b.byte(opBr)
	b.u32(0)
	b.byte(opEnd)
	b.byte(opI64Const)
	b.s64(0)
	return function{typeIdx: typeCall, body: b.buf.Bytes()}
}
