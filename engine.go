package wasmudf

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/wasm-udf/bridge"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/function"
	"github.com/wippyai/wasm-udf/guest"
	"github.com/wippyai/wasm-udf/sandbox"
	"github.com/wippyai/wasm-udf/udf"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	isolated   bool
}

// WithMetrics registers invocation metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithIsolatedModules gives every function its own sandbox instance instead
// of sharing one instance per module.
func WithIsolatedModules() Option {
	return func(o *options) {
		o.isolated = true
	}
}

// Engine bundles a module loader, the WASM function factory and a function
// registry.
type Engine struct {
	loader    *sandbox.Loader
	functions *function.Registry
	factory   *udf.Factory
	metrics   *bridge.Metrics
}

// New creates an engine with its own wazero runtime.
func New(ctx context.Context, cfg sandbox.Config, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var metrics *bridge.Metrics
	if o.registerer != nil {
		m, err := bridge.NewMetrics(o.registerer)
		if err != nil {
			kind := errors.KindInvalidDefinition
			var dup prometheus.AlreadyRegisteredError
			if errors.As(err, &dup) {
				kind = errors.KindDuplicate
			}
			return nil, errors.New(errors.PhaseRegister, kind).
				Detail("register metrics").
				Cause(err).
				Build()
		}
		metrics = m
	}

	loader, err := sandbox.NewLoader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	udfOpts := []udf.Option{udf.WithBridge(bridge.New(bridge.WithMetrics(metrics)))}
	if !o.isolated {
		udfOpts = append(udfOpts, udf.WithSharedModules())
	}
	factory := udf.NewFactory(loader, udfOpts...)

	functions := function.NewRegistry()
	functions.RegisterFactory(udf.Language, factory)

	return &Engine{
		loader:    loader,
		functions: functions,
		factory:   factory,
		metrics:   metrics,
	}, nil
}

// NewFromFile creates an engine from a YAML loader config.
func NewFromFile(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	cfg, err := sandbox.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// Loader returns the module loader.
func (e *Engine) Loader() *sandbox.Loader {
	return e.loader
}

// Functions returns the function registry.
func (e *Engine) Functions() *function.Registry {
	return e.functions
}

// Factory returns the LANGUAGE WASM function factory.
func (e *Engine) Factory() *udf.Factory {
	return e.factory
}

// Metrics returns the invocation metrics, or nil when disabled.
func (e *Engine) Metrics() *bridge.Metrics {
	return e.metrics
}

// RegisterNative serves the functions of r in-process under module ref.
// Definitions naming ref resolve to it instead of a file.
func (e *Engine) RegisterNative(ref string, r *guest.Registry) {
	e.loader.RegisterNative(ref, sandbox.NewNativeFromRegistry(ref, r))
}

// CreateFunction registers the function described by def.
func (e *Engine) CreateFunction(ctx context.Context, def function.Definition) error {
	return e.functions.CreateFunction(ctx, def)
}

// DropFunction removes a function and releases its sandbox.
func (e *Engine) DropFunction(ctx context.Context, name string) error {
	return e.functions.Drop(ctx, name)
}

// Invoke calls the function registered under name. The caller owns the
// returned array and must Release it.
func (e *Engine) Invoke(ctx context.Context, name string, args []arrow.Array) (arrow.Array, error) {
	return e.functions.Invoke(ctx, name, args)
}

// Close drops every function and releases all runtime resources.
func (e *Engine) Close(ctx context.Context) error {
	return errors.Join(e.functions.Close(ctx), e.loader.Close(ctx))
}
