package sandbox

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/errors"
	"github.com/wippyai/wasm-udf/guest"
)

// Native serves guest handlers in-process. Payloads and frames are the same
// bytes a wasm guest would see; panics are recovered as traps.
type Native struct {
	handlers map[string]guest.Handler
	name     string
	mu       sync.Mutex
}

var _ Sandbox = (*Native)(nil)

// NewNative creates an empty native module.
func NewNative(name string) *Native {
	return &Native{
		name:     name,
		handlers: make(map[string]guest.Handler),
	}
}

// NewNativeFromRegistry exports every function of r under its
// __wasm_udf_ symbol.
func NewNativeFromRegistry(name string, r *guest.Registry) *Native {
	n := NewNative(name)
	for _, fn := range r.Names() {
		h, _ := r.Handler(fn)
		n.Export(abi.ExportName(fn), h)
	}
	return n
}

// Export registers h under the raw export symbol.
func (n *Native) Export(symbol string, h guest.Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[symbol] = h
}

// Name returns the module name.
func (n *Native) Name() string {
	return n.name
}

// Exports returns the exported symbols in sorted order.
func (n *Native) Exports() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	names := make([]string, 0, len(n.handlers))
	for symbol := range n.handlers {
		names = append(names, symbol)
	}
	sort.Strings(names)
	return names
}

// HasExport reports whether symbol is exported.
func (n *Native) HasExport(symbol string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.handlers[symbol]
	return ok
}

// CheckExport returns a missing export error for unknown symbols. Native
// handlers always have the call signature.
func (n *Native) CheckExport(symbol string) error {
	if !n.HasExport(symbol) {
		return errors.MissingExport(n.name, symbol)
	}
	return nil
}

// Call implements Sandbox.
func (n *Native) Call(ctx context.Context, symbol string, payload []byte) (out []byte, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := n.handlers[symbol]
	if !ok {
		return nil, errors.MissingExport(n.name, symbol)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &TrapError{Symbol: symbol, Reason: fmt.Sprint(r)}
		}
	}()
	return h(payload), nil
}

// Close is a no-op; native handlers hold no guest resources.
func (n *Native) Close(context.Context) error {
	return nil
}
