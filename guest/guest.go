package guest

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/codec"
)

// Func is a pure columnar transform: N argument arrays in, one array out.
// The arguments are owned by the caller; the result is owned by the callee's
// caller, so return a retained reference when passing an argument through.
type Func func(args []arrow.Array) (arrow.Array, error)

// Handler is the boundary entry point of one exported function.
type Handler func(in []byte) []byte

// ReportedError is an explicit application error. It is returned to the host
// as a normal call result and leaves the guest instance intact.
type ReportedError struct {
	Message string
}

func (e *ReportedError) Error() string {
	return e.Message
}

// Errorf creates a ReportedError.
func Errorf(format string, args ...any) error {
	return &ReportedError{Message: fmt.Sprintf(format, args...)}
}

// Handle runs fn on an encoded argument batch and returns a response frame.
func Handle(fn Func, in []byte) []byte {
	rec, err := codec.Decode(in)
	if err != nil {
		return abi.EncodeResponse(abi.StatusCodec, []byte(err.Error()))
	}
	defer rec.Release()

	out, err := fn(rec.Columns())
	if err != nil {
		var reported *ReportedError
		if errors.As(err, &reported) {
			return abi.EncodeResponse(abi.StatusReported, []byte(reported.Message))
		}
		return abi.EncodeResponse(abi.StatusComputation, []byte(err.Error()))
	}
	if out == nil {
		return abi.EncodeResponse(abi.StatusComputation, []byte("function returned no result"))
	}
	defer out.Release()

	if int64(out.Len()) != rec.NumRows() {
		msg := fmt.Sprintf("function returned %d rows, want %d", out.Len(), rec.NumRows())
		return abi.EncodeResponse(abi.StatusComputation, []byte(msg))
	}

	res := codec.ResultRecord(out)
	defer res.Release()

	payload, err := codec.Encode(res)
	if err != nil {
		return abi.EncodeResponse(abi.StatusCodec, []byte(err.Error()))
	}
	return abi.EncodeResponse(abi.StatusOK, payload)
}

// Registry maps declared function names to guest functions.
type Registry struct {
	funcs map[string]Func
	mu    sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Export registers fn under name, replacing any previous registration.
func (r *Registry) Export(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Handler returns the boundary entry point for name.
func (r *Registry) Handler(name string) (Handler, bool) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}
	return func(in []byte) []byte { return Handle(fn, in) }, true
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

// Symbols returns the export symbols of the registered functions.
func (r *Registry) Symbols() []string {
	names := r.Names()
	for i, name := range names {
		names[i] = abi.ExportName(name)
	}
	return names
}

var defaultRegistry = NewRegistry()

// Default returns the registry used by Export and Call.
func Default() *Registry {
	return defaultRegistry
}

// Export registers fn in the default registry.
func Export(name string, fn Func) {
	defaultRegistry.Export(name, fn)
}
