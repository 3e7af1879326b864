// Package guest turns plain array transforms into host-callable exports.
//
// A guest function is a pure Func: it receives the argument columns and
// returns one result column of the same length. Handle wraps it into the
// bytes-in, bytes-out entry point the host calls: decode the argument batch,
// call the function, encode the single-column result, frame it.
//
//	func pow(args []arrow.Array) (arrow.Array, error) { ... }
//
//	func init() { guest.Export("pow", pow) }
//
// When compiled with GOOS=wasip1 the package exports the memory management
// functions the host expects, and each function is exposed with a one-line
// shim:
//
//	//go:wasmexport __wasm_udf_pow
//	func powExport(ptr, size uint32) uint64 { return guest.Call(ptr, size, "pow") }
//
// Errors are classified at the boundary. Return a ReportedError (see Errorf)
// to signal an application-level failure; any other error is passed to the
// host verbatim as a computation error. Panics are not recovered: inside the
// sandbox they abort the call as a trap, which the host observes separately.
package guest
