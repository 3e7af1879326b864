// Package abi defines the raw byte ABI between the host and a guest module.
//
// A guest function declared as name is exported under ExportName(name) with
// the core signature (ptr i32, len i32) -> i64. The argument is one encoded
// batch in guest memory; the result packs the pointer and length of a
// response frame as ptr<<32 | len.
//
// A response frame is one status byte followed by a payload:
//
//	StatusOK          encoded single-column result batch
//	StatusReported    UTF-8 message of an explicit application error
//	StatusComputation UTF-8 message of a failed computation
//	StatusCodec       UTF-8 message of a guest-side decode/encode failure
//
// Traps are not framed: they abort the call and are observed by the host as
// errors returned from the call itself.
package abi
