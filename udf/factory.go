package udf

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/function"
	"github.com/wippyai/wasm-udf/sandbox"
)

// Language is the LANGUAGE clause handled by Factory.
const Language = "WASM"

// ModuleLoader opens a sandbox for a module reference. *sandbox.Loader
// implements it.
type ModuleLoader interface {
	Open(ctx context.Context, module string) (sandbox.Sandbox, error)
}

type sharedSandbox struct {
	sb   sandbox.Sandbox
	refs int
}

// Factory creates Functions from CREATE FUNCTION definitions.
type Factory struct {
	loader ModuleLoader
	shared map[string]*sharedSandbox
	cfg    config
	mu     sync.Mutex
}

var _ function.Factory = (*Factory)(nil)

// NewFactory creates a factory that opens modules through loader.
func NewFactory(loader ModuleLoader, opts ...Option) *Factory {
	return &Factory{
		loader: loader,
		shared: make(map[string]*sharedSandbox),
		cfg:    buildConfig(opts),
	}
}

// Create implements function.Factory.
func (f *Factory) Create(ctx context.Context, def function.Definition) (function.Scalar, error) {
	if !strings.EqualFold(def.Language, Language) {
		return nil, errors.Unsupported(errors.PhaseDefine, "language "+def.Language)
	}
	if def.Body == "" {
		return nil, errors.New(errors.PhaseDefine, errors.KindInvalidDefinition).
			Function(def.Name).
			Detail("wasm function not defined").
			Build()
	}
	if def.ReturnType == nil {
		return nil, errors.MissingReturnType(def.Name)
	}
	// Without arguments the row count of a call is unknown.
	if len(def.Args) == 0 {
		return nil, errors.New(errors.PhaseDefine, errors.KindInvalidDefinition).
			Function(def.Name).
			Detail("wasm functions take at least one argument").
			Build()
	}
	for i, arg := range def.Args {
		if arg.Type == nil {
			return nil, errors.New(errors.PhaseDefine, errors.KindInvalidDefinition).
				Function(def.Name).
				Detail("argument %d has no type", i).
				Build()
		}
	}

	ref, err := ParseReference(def.Body)
	if err != nil {
		return nil, err
	}

	symbol := abi.ExportName(ref.Method)
	if _, ok := abi.FunctionName(symbol); !ok {
		return nil, errors.New(errors.PhaseDefine, errors.KindInvalidDefinition).
			Function(def.Name).
			Detail("%q is reserved for guest memory management", ref.Method).
			Value(ref.Method).
			Build()
	}

	sb, release, err := f.open(ctx, ref.Module)
	if err != nil {
		var structured *errors.Error
		if errors.As(err, &structured) && structured.Phase == errors.PhaseLoad {
			return nil, err
		}
		return nil, errors.Load("open module "+ref.Module, err)
	}

	if ex, ok := sb.(sandbox.Exporter); ok {
		if !ex.HasExport(symbol) {
			_ = release(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindMissingExport).
				Function(def.Name).
				Detail("can't find function %q in wasm module %q", symbol, ref.Module).
				Value(symbol).
				Build()
		}
		if err := ex.CheckExport(symbol); err != nil {
			_ = release(ctx)
			return nil, errors.New(errors.PhaseLoad, errors.KindTypeMismatch).
				Function(def.Name).
				Detail("function %q in wasm module %q is not callable as a udf", symbol, ref.Module).
				Value(symbol).
				Cause(err).
				Build()
		}
	}

	fn := newFunction(sb, def.Name, ref.Method, def.ArgTypes(), def.ReturnType, f.cfg, release)

	Logger().Info("created wasm function",
		zap.String("name", def.Name),
		zap.String("module", ref.Module),
		zap.String("symbol", symbol),
		zap.Stringer("signature", fn.Signature()),
		zap.Stringer("returns", def.ReturnType))
	return fn, nil
}

// open returns a sandbox for module together with the function that gives
// it back.
func (f *Factory) open(ctx context.Context, module string) (sandbox.Sandbox, func(context.Context) error, error) {
	if !f.cfg.shared {
		sb, err := f.loader.Open(ctx, module)
		if err != nil {
			return nil, nil, err
		}
		return sb, sb.Close, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.shared[module]
	if !ok {
		sb, err := f.loader.Open(ctx, module)
		if err != nil {
			return nil, nil, err
		}
		entry = &sharedSandbox{sb: sb}
		f.shared[module] = entry
	}
	entry.refs++

	return entry.sb, func(ctx context.Context) error {
		return f.releaseShared(ctx, module, entry)
	}, nil
}

func (f *Factory) releaseShared(ctx context.Context, module string, entry *sharedSandbox) error {
	f.mu.Lock()
	entry.refs--
	last := entry.refs == 0
	if last && f.shared[module] == entry {
		delete(f.shared, module)
	}
	f.mu.Unlock()

	if !last {
		return nil
	}
	Logger().Debug("closing shared module", zap.String("module", module))
	return entry.sb.Close(ctx)
}

// Shared returns how many functions hold the shared sandbox of module.
func (f *Factory) Shared(module string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.shared[module]; ok {
		return entry.refs
	}
	return 0
}
