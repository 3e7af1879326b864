// Package wasmudf runs user-defined scalar functions inside sandboxed
// WebAssembly guests for a columnar query engine.
//
// A function is declared the way a SQL engine sees it:
//
//	CREATE FUNCTION f1(DOUBLE, DOUBLE) RETURNS DOUBLE LANGUAGE WASM AS 'functions.wasm!f1'
//
// The body names a module and a method. The module is compiled once, the
// method maps to the guest export __wasm_udf_f1, and every call sends the
// argument columns to the guest as one Arrow IPC batch and reads one
// single-column batch back.
//
// # Architecture Overview
//
//	wasmudf/             Engine facade wiring the packages below
//	├── function/        Scalar function contract and name-keyed registry
//	├── udf/             LANGUAGE WASM factory and function adapter
//	├── bridge/          One guest call: encode, call, classify, decode
//	├── sandbox/         wazero loader, instances, trap recovery
//	├── codec/           Arrow IPC batch encoding
//	├── abi/             Export naming and response frames
//	├── guest/           Guest-side export helpers (wasip1)
//	└── errors/          Structured error types
//
// # Quick Start
//
//	eng, err := wasmudf.New(ctx, sandbox.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	err = eng.CreateFunction(ctx, function.Definition{
//	    Name:       "f1",
//	    Args:       []function.Arg{{Type: arrow.PrimitiveTypes.Float64}, {Type: arrow.PrimitiveTypes.Float64}},
//	    ReturnType: arrow.PrimitiveTypes.Float64,
//	    Language:   "WASM",
//	    Body:       "functions.wasm!f1",
//	})
//
//	out, err := eng.Invoke(ctx, "f1", []arrow.Array{base, exponent})
//
// # Failure Classes
//
// Guest failures never unwind into the host. They surface as
// *errors.ExecError with one of three kinds:
//
//   - KindGuestReported: the guest returned an application error. The
//     message is always "wasm function returned error".
//   - KindGuestComputation: the guest computation failed. Its message is
//     passed through verbatim.
//   - KindGuestPanic: the guest trapped. The message starts with
//     "wasm function panicked:".
//
// Malformed batches in either direction are *errors.Error values of kind
// KindInvalidData and are never confused with guest-reported errors.
//
// # Thread Safety
//
// Engine, Loader and Registry are safe for concurrent use. Calls on one
// sandbox instance are serialized; a trap rebuilds the instance from its
// compiled module before the next call.
package wasmudf
