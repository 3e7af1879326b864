// Package bridge performs one guest function call: encode the argument batch,
// call the sandbox once, classify the response and decode the result batch.
//
// Failures are classified into:
//
//   - *errors.ExecError of kind KindGuestReported for an explicit application
//     error. Its message is "wasm function returned error"; the guest text is
//     kept in Detail.
//   - *errors.ExecError of kind KindGuestComputation for any other error
//     returned by the guest. The message is surfaced verbatim.
//   - *errors.ExecError of kind KindGuestPanic when the guest traps.
//   - *errors.Error of kind KindInvalidData when a batch could not cross the
//     boundary in either direction.
//
// Nothing is retried. A sandbox that traps resets itself before the next call.
package bridge
