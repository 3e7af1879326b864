package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseValidate,
				Kind:     KindTypeMismatch,
				Function: "f1",
				Detail:   "argument 0: expected float64, got utf8",
			},
			contains: []string{"[validate]", "type_mismatch", "in f1", "expected float64"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindInvalidData,
			},
			contains: []string{"[decode]", "invalid_data"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindCompile,
				Detail: "compile module",
				Cause:  errors.New("invalid magic number"),
			},
			contains: []string{"[load]", "compile", "caused by", "invalid magic number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Codec(PhaseDecode, "read record", cause)

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause in chain")
	}
}

func TestError_Is(t *testing.T) {
	err := Arity("f1", 2, 1)

	if !errors.Is(err, &Error{Phase: PhaseValidate, Kind: KindArity}) {
		t.Error("expected match on phase and kind")
	}
	if !errors.Is(err, &Error{Kind: KindArity}) {
		t.Error("expected match on kind without phase")
	}
	if errors.Is(err, &Error{Phase: PhaseDecode, Kind: KindArity}) {
		t.Error("unexpected match on different phase")
	}
	if errors.Is(err, &Error{Kind: KindTypeMismatch}) {
		t.Error("unexpected match on different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("boom")
	err := New(PhaseRegister, KindDuplicate).
		Function("pow").
		Value(3).
		Detail("function %q already exists", "pow").
		Cause(cause).
		Build()

	if err.Function != "pow" || err.Value != 3 || err.Cause != cause {
		t.Fatalf("builder lost fields: %+v", err)
	}
	if err.Detail != `function "pow" already exists` {
		t.Errorf("unexpected detail %q", err.Detail)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err   *Error
		phase Phase
		kind  Kind
	}{
		{InvalidDefinition("bad"), PhaseDefine, KindInvalidDefinition},
		{MissingReturnType("f"), PhaseDefine, KindMissingReturnType},
		{Unsupported(PhaseDefine, "language"), PhaseDefine, KindUnsupported},
		{Load("read", nil), PhaseLoad, KindNotFound},
		{Compile("m.wasm", nil), PhaseLoad, KindCompile},
		{Instantiation("m.wasm", nil), PhaseLoad, KindInstantiation},
		{MissingExport("m.wasm", "__wasm_udf_f"), PhaseInvoke, KindMissingExport},
		{OutOfBounds(PhaseDecode, 10, 20, 16), PhaseDecode, KindOutOfBounds},
		{TypeMismatch("f", 0, "int64", "utf8"), PhaseValidate, KindTypeMismatch},
		{NotFound(PhaseRegister, "function", "f"), PhaseRegister, KindNotFound},
		{Duplicate("function", "f"), PhaseRegister, KindDuplicate},
		{Closed(PhaseInvoke, "instance"), PhaseInvoke, KindClosed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
		})
	}
}

func TestExecError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *ExecError
		want string
	}{
		{"reported", GuestReported("f", "bad input"), "wasm function returned error"},
		{"computation", GuestComputation("f", "Divide by zero error"), "Divide by zero error"},
		{"panic", GuestPanic("f", "unreachable", nil), "wasm function panicked: unreachable"},
		{"panic without reason", GuestPanic("f", "", nil), "wasm function panicked"},
		{"other", &ExecError{Kind: KindInvalidData, Cause: errors.New("truncated")}, "wasm call error: truncated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecError_Is(t *testing.T) {
	var err error = GuestPanic("f", "unreachable", errors.New("wasm error: unreachable"))

	if !errors.Is(err, ErrGuestPanic) {
		t.Error("expected ErrGuestPanic")
	}
	if errors.Is(err, ErrGuestReported) || errors.Is(err, ErrGuestComputation) {
		t.Error("panic matched another failure class")
	}

	var exec *ExecError
	if !As(err, &exec) || exec.Function != "f" {
		t.Errorf("As failed: %v", exec)
	}

	if errors.Is(GuestReported("f", "x"), &Error{Kind: KindGuestReported}) {
		t.Error("ExecError must not match structured Error")
	}
}
