// Package errors provides structured error types for the wasm-udf library.
//
// Registration, loading and codec failures are reported as *Error, categorized
// by Phase (where the error occurred) and Kind (error category). The Error type
// carries the function name, a detail message and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseValidate, errors.KindTypeMismatch).
//		Function("f1").
//		Detail("argument 1: expected float64, got utf8").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.InvalidDefinition("bad module/method format")
//	err := errors.Codec(errors.PhaseDecode, "read record", cause)
//
// Failures that happen while a guest function runs are reported as *ExecError,
// the execution error channel of the query engine. Callers tell the failure
// classes apart with errors.Is:
//
//	errors.Is(err, errors.ErrGuestReported)    // guest returned an error
//	errors.Is(err, errors.ErrGuestComputation) // guest computation failed
//	errors.Is(err, errors.ErrGuestPanic)       // guest trapped
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
