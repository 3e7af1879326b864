// Package wasmtest assembles small core wasm modules for tests. The modules
// follow the host ABI so the sandbox and bridge can be exercised without a
// wasm toolchain.
package wasmtest

import (
	"bytes"
)

const (
	sectionType     = 1
	sectionFunction = 3
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionCode     = 10
	sectionData     = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	valI32 = 0x7f
	valI64 = 0x7e

	funcTypeByte = 0x60
)

// Opcodes used by the assembled function bodies.
const (
	opUnreachable   = 0x00
	opLoop          = 0x03
	opBr            = 0x0c
	blockEmpty      = 0x40
	opEnd           = 0x0b
	opCall          = 0x10
	opDrop          = 0x1a
	opLocalGet      = 0x20
	opLocalSet      = 0x21
	opGlobalGet     = 0x23
	opGlobalSet     = 0x24
	opI32Load       = 0x28
	opI32Store      = 0x36
	opI32Store8     = 0x3a
	opI32Const      = 0x41
	opI64Const      = 0x42
	opI32Add        = 0x6a
	opI32DivS       = 0x6d
	opI64Or         = 0x84
	opI64Shl        = 0x86
	opI64ExtendI32U = 0xad
	opPrefixFC      = 0xfc
	opMemoryCopy    = 0x0a
)

type funcType struct {
	params  []byte
	results []byte
}

type function struct {
	typeIdx uint32
	locals  []byte // one i32/i64 entry per local
	body    []byte // without the trailing end
}

type export struct {
	name string
	kind byte
	idx  uint32
}

type dataSegment struct {
	offset uint32
	data   []byte
}

// module is an in-memory core module.
type module struct {
	types    []funcType
	funcs    []function
	exports  []export
	data     []dataSegment
	memPages uint32
	heapBase int32
}

// writer is a byte buffer with LEB128 helpers.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b ...byte) { w.buf.Write(b) }

func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func (w *writer) s64(v int64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.buf.WriteByte(b)
			return
		}
		w.buf.WriteByte(b | 0x80)
	}
}

func (w *writer) s32(v int32) { w.s64(int64(v)) }

func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) vec(b []byte) {
	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *writer) section(id byte, body *writer) {
	w.byte(id)
	w.vec(body.buf.Bytes())
}

func (m *module) encode() []byte {
	var w writer
	w.byte(0x00, 0x61, 0x73, 0x6d) // \0asm
	w.byte(0x01, 0x00, 0x00, 0x00) // version 1

	var sec writer
	sec.u32(uint32(len(m.types)))
	for _, ft := range m.types {
		sec.byte(funcTypeByte)
		sec.vec(ft.params)
		sec.vec(ft.results)
	}
	w.section(sectionType, &sec)

	sec = writer{}
	sec.u32(uint32(len(m.funcs)))
	for _, fn := range m.funcs {
		sec.u32(fn.typeIdx)
	}
	w.section(sectionFunction, &sec)

	sec = writer{}
	sec.u32(1)
	sec.byte(0x00)
	sec.u32(m.memPages)
	w.section(sectionMemory, &sec)

	// Global 0 is the mutable heap pointer of the bump allocator.
	sec = writer{}
	sec.u32(1)
	sec.byte(valI32, 0x01, opI32Const)
	sec.s32(m.heapBase)
	sec.byte(opEnd)
	w.section(sectionGlobal, &sec)

	sec = writer{}
	sec.u32(uint32(len(m.exports)))
	for _, exp := range m.exports {
		sec.name(exp.name)
		sec.byte(exp.kind)
		sec.u32(exp.idx)
	}
	w.section(sectionExport, &sec)

	sec = writer{}
	sec.u32(uint32(len(m.funcs)))
	for _, fn := range m.funcs {
		var body writer
		body.u32(uint32(len(fn.locals)))
		for _, l := range fn.locals {
			body.u32(1)
			body.byte(l)
		}
		body.byte(fn.body...)
		body.byte(opEnd)
		sec.vec(body.buf.Bytes())
	}
	w.section(sectionCode, &sec)

	if len(m.data) > 0 {
		sec = writer{}
		sec.u32(uint32(len(m.data)))
		for _, seg := range m.data {
			sec.byte(0x00, opI32Const)
			sec.s32(int32(seg.offset))
			sec.byte(opEnd)
			sec.vec(seg.data)
		}
		w.section(sectionData, &sec)
	}

	return w.buf.Bytes()
}
