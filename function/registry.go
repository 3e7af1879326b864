package function

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/wippyai/wasm-udf/errors"
)

// Registry is a name-keyed table of scalar functions.
type Registry struct {
	factories map[string]Factory
	funcs     map[string]Scalar
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		funcs:     make(map[string]Scalar),
	}
}

// RegisterFactory installs the factory for a language. Language names are
// case-insensitive.
func (r *Registry) RegisterFactory(language string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToUpper(language)] = f
}

// CreateFunction builds a function from def with the factory of its
// language and registers it. An existing function with the same name is
// replaced only when def.OrReplace is set.
func (r *Registry) CreateFunction(ctx context.Context, def Definition) error {
	r.mu.RLock()
	f, ok := r.factories[strings.ToUpper(def.Language)]
	_, exists := r.funcs[def.Name]
	r.mu.RUnlock()

	if !ok {
		return errors.Unsupported(errors.PhaseDefine, "language "+def.Language)
	}
	if exists && !def.OrReplace {
		return errors.Duplicate("function", def.Name)
	}

	fn, err := f.Create(ctx, def)
	if err != nil {
		return err
	}
	if err := r.register(ctx, def.Name, fn, def.OrReplace); err != nil {
		_ = fn.Close(ctx)
		return err
	}
	return nil
}

// Register adds fn under its own name. It fails if the name is taken.
func (r *Registry) Register(fn Scalar) error {
	return r.register(context.Background(), fn.Name(), fn, false)
}

func (r *Registry) register(ctx context.Context, name string, fn Scalar, replace bool) error {
	r.mu.Lock()
	old, exists := r.funcs[name]
	if exists && !replace {
		r.mu.Unlock()
		return errors.Duplicate("function", name)
	}
	r.funcs[name] = fn
	r.mu.Unlock()

	if exists && old != fn {
		return old.Close(ctx)
	}
	return nil
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Scalar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Invoke validates args against the function's signature, runs it and
// checks the result against the declared return type and row count. The
// caller owns the returned array and must Release it.
func (r *Registry) Invoke(ctx context.Context, name string, args []arrow.Array) (arrow.Array, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseInvoke, "function", name)
	}

	sig := fn.Signature()
	if err := sig.Check(name, args); err != nil {
		return nil, err
	}

	want, err := fn.ReturnType(sig.Types)
	if err != nil {
		return nil, err
	}

	out, err := fn.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	if !arrow.TypeEqual(want, out.DataType()) {
		got := out.DataType()
		out.Release()
		return nil, errors.New(errors.PhaseInvoke, errors.KindTypeMismatch).
			Function(name).
			Detail("result: expected %s, got %s", want, got).
			Build()
	}
	if len(args) > 0 && out.Len() != args[0].Len() {
		rows := out.Len()
		out.Release()
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidData).
			Function(name).
			Detail("result has %d rows, want %d", rows, args[0].Len()).
			Build()
	}
	return out, nil
}

// Drop removes and closes the function registered under name.
func (r *Registry) Drop(ctx context.Context, name string) error {
	r.mu.Lock()
	fn, ok := r.funcs[name]
	delete(r.funcs, name)
	r.mu.Unlock()

	if !ok {
		return errors.NotFound(errors.PhaseRegister, "function", name)
	}
	return fn.Close(ctx)
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close drops every function.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	funcs := r.funcs
	r.funcs = make(map[string]Scalar)
	r.mu.Unlock()

	var errs []error
	for _, fn := range funcs {
		if err := fn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
