package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDefine   Phase = "define"   // function definition parsing
	PhaseLoad     Phase = "load"     // module loading
	PhaseEncode   Phase = "encode"   // host or guest batch to bytes
	PhaseDecode   Phase = "decode"   // bytes to batch
	PhaseValidate Phase = "validate" // argument validation
	PhaseInvoke   Phase = "invoke"   // guest call
	PhaseRegister Phase = "register" // function registry
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidDefinition Kind = "invalid_definition"
	KindMissingReturnType Kind = "missing_return_type"
	KindUnsupported       Kind = "unsupported"
	KindNotFound          Kind = "not_found"
	KindCompile           Kind = "compile"
	KindInstantiation     Kind = "instantiation"
	KindMissingExport     Kind = "missing_export"
	KindInvalidData       Kind = "invalid_data"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindTypeMismatch      Kind = "type_mismatch"
	KindArity             Kind = "arity"
	KindDuplicate         Kind = "duplicate"
	KindClosed            Kind = "closed"
	KindGuestReported     Kind = "guest_reported"
	KindGuestComputation  Kind = "guest_computation"
	KindGuestPanic        Kind = "guest_panic"
)

// Error is the structured error type used for definition, load, codec and
// validation failures.
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Function string
	Detail   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Function != "" {
		b.WriteString(" in ")
		b.WriteString(e.Function)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Empty Phase or Kind fields
// in target match anything.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Phase != "" || t.Kind != ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Function sets the function the error relates to
func (b *Builder) Function(name string) *Builder {
	b.err.Function = name
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidDefinition creates a malformed function definition error
func InvalidDefinition(detail string) *Error {
	return &Error{
		Phase:  PhaseDefine,
		Kind:   KindInvalidDefinition,
		Detail: detail,
	}
}

// MissingReturnType creates an error for a definition without RETURNS
func MissingReturnType(function string) *Error {
	return &Error{
		Phase:    PhaseDefine,
		Kind:     KindMissingReturnType,
		Function: function,
		Detail:   "return type expected",
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindNotFound,
		Detail: detail,
		Cause:  cause,
	}
}

// Compile creates a module compilation error
func Compile(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindCompile,
		Detail: fmt.Sprintf("compile module %q", module),
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(module string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInstantiation,
		Detail: fmt.Sprintf("instantiate module %q", module),
		Cause:  cause,
	}
}

// MissingExport creates an error for a symbol the guest does not export
func MissingExport(module, symbol string) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindMissingExport,
		Detail: fmt.Sprintf("can't find function %q in wasm module %q", symbol, module),
		Value:  symbol,
	}
}

// Codec creates a codec error. Codec errors mean the data could not cross the
// boundary; they are never guest-reported failures.
func Codec(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds guest memory access error
func OutOfBounds(phase Phase, offset, length, size uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("range [%d, %d) out of bounds (memory size %d)", offset, uint64(offset)+uint64(length), size),
		Value:  offset,
	}
}

// Arity creates an argument count mismatch error
func Arity(function string, want, got int) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindArity,
		Function: function,
		Detail:   fmt.Sprintf("expected %d arguments, got %d", want, got),
		Value:    got,
	}
}

// TypeMismatch creates an argument type mismatch error
func TypeMismatch(function string, index int, want, got string) *Error {
	return &Error{
		Phase:    PhaseValidate,
		Kind:     KindTypeMismatch,
		Function: function,
		Detail:   fmt.Sprintf("argument %d: expected %s, got %s", index, want, got),
		Value:    index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Duplicate creates an already-registered error
func Duplicate(what, name string) *Error {
	return &Error{
		Phase:    PhaseRegister,
		Kind:     KindDuplicate,
		Function: name,
		Detail:   fmt.Sprintf("%s %q already exists", what, name),
	}
}

// Closed creates an error for use after close
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// Is and As forward to the standard library so callers importing this
// package do not need a second errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Join(errs ...error) error { return stderrors.Join(errs...) }
