package errors

// Host-visible messages of the execution error channel.
const (
	MsgGuestReported = "wasm function returned error"
	msgGuestPanic    = "wasm function panicked"
	msgCallFailed    = "wasm call error"
)

// ExecError is an error raised while a guest function executes. It is what
// the query engine surfaces to the user for a failed function call.
type ExecError struct {
	Cause    error
	Kind     Kind
	Function string
	Detail   string
}

// Sentinels for errors.Is. They match any ExecError of the same kind.
var (
	ErrGuestReported    = &ExecError{Kind: KindGuestReported}
	ErrGuestComputation = &ExecError{Kind: KindGuestComputation}
	ErrGuestPanic       = &ExecError{Kind: KindGuestPanic}
)

// Error returns the stable, user-facing message for the failure class.
func (e *ExecError) Error() string {
	switch e.Kind {
	case KindGuestReported:
		return MsgGuestReported
	case KindGuestComputation:
		return e.Detail
	case KindGuestPanic:
		if e.Detail == "" {
			return msgGuestPanic
		}
		return msgGuestPanic + ": " + e.Detail
	}
	if e.Cause != nil {
		return msgCallFailed + ": " + e.Cause.Error()
	}
	return msgCallFailed + ": " + e.Detail
}

// Unwrap returns the underlying error
func (e *ExecError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecError of the same kind.
func (e *ExecError) Is(target error) bool {
	t, ok := target.(*ExecError)
	return ok && t.Kind == e.Kind
}

// GuestReported creates the error for an explicit application error
// signalled by the guest. The guest's message is kept in Detail.
func GuestReported(function, message string) *ExecError {
	return &ExecError{
		Kind:     KindGuestReported,
		Function: function,
		Detail:   message,
	}
}

// GuestComputation creates the error for a failed computation inside the
// guest. The message is surfaced verbatim.
func GuestComputation(function, message string) *ExecError {
	return &ExecError{
		Kind:     KindGuestComputation,
		Function: function,
		Detail:   message,
	}
}

// GuestPanic creates the error for a guest trap.
func GuestPanic(function, reason string, cause error) *ExecError {
	return &ExecError{
		Kind:     KindGuestPanic,
		Function: function,
		Detail:   reason,
		Cause:    cause,
	}
}
