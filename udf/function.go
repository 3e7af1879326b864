package udf

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/bridge"
	"github.com/wippyai/wasm-udf/codec"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/function"
	"github.com/wippyai/wasm-udf/sandbox"
)

// Function is a scalar function whose body is a guest export.
type Function struct {
	sb         sandbox.Sandbox
	bridge     *bridge.Bridge
	release    func(context.Context) error
	schema     *arrow.Schema
	returnType arrow.DataType
	name       string
	symbol     string
	sig        function.Signature
	closeOnce  sync.Once
	closeErr   error
}

var _ function.Scalar = (*Function)(nil)

// New binds name to the guest export of method on sb. The Function owns sb
// and closes it on Close.
func New(sb sandbox.Sandbox, name, method string, argTypes []arrow.DataType, returnType arrow.DataType, opts ...Option) *Function {
	return newFunction(sb, name, method, argTypes, returnType, buildConfig(opts), sb.Close)
}

func newFunction(sb sandbox.Sandbox, name, method string, argTypes []arrow.DataType, returnType arrow.DataType, cfg config, release func(context.Context) error) *Function {
	return &Function{
		sb:         sb,
		bridge:     cfg.bridge,
		release:    release,
		schema:     codec.ArgumentSchema(argTypes),
		returnType: returnType,
		name:       name,
		symbol:     abi.ExportName(method),
		sig:        function.Exact(argTypes, cfg.volatility),
	}
}

// Name returns the declared function name.
func (f *Function) Name() string {
	return f.name
}

// Symbol returns the guest export the function calls.
func (f *Function) Symbol() string {
	return f.symbol
}

// Signature returns the exact declared argument types.
func (f *Function) Signature() function.Signature {
	return f.sig
}

// ReturnType returns the declared return type regardless of argTypes.
func (f *Function) ReturnType([]arrow.DataType) (arrow.DataType, error) {
	return f.returnType, nil
}

// Invoke validates args, calls the guest once and returns its result
// column. The caller owns the returned array and must Release it.
func (f *Function) Invoke(ctx context.Context, args []arrow.Array) (arrow.Array, error) {
	if err := f.sig.Check(f.name, args); err != nil {
		return nil, err
	}

	rec, err := codec.Pack(f.schema, args)
	if err != nil {
		return nil, err
	}
	defer rec.Release()

	col, err := f.bridge.Column(ctx, f.sb, f.symbol, rec)
	if err != nil {
		var exec *errors.ExecError
		if errors.As(err, &exec) {
			exec.Function = f.name
		}
		return nil, err
	}

	if !arrow.TypeEqual(f.returnType, col.DataType()) {
		got := col.DataType()
		col.Release()
		return nil, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Function(f.name).
			Detail("result: expected %s, got %s", f.returnType, got).
			Build()
	}
	return col, nil
}

// Close releases the sandbox, or this function's share of it.
func (f *Function) Close(ctx context.Context) error {
	f.closeOnce.Do(func() {
		f.closeErr = f.release(ctx)
	})
	return f.closeErr
}
