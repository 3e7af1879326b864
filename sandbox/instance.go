package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-udf/abi"
	"github.com/wippyai/wasm-udf/errors"
)

// TrapError reports a guest call that terminated abnormally: an unreachable
// instruction, a memory fault, a Go runtime panic exiting the guest, or a
// call that exceeded its deadline.
type TrapError struct {
	Cause  error
	Symbol string
	Reason string
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("%s trapped: %s", e.Symbol, e.Reason)
}

func (e *TrapError) Unwrap() error {
	return e.Cause
}

// Instance is a wazero instance of a Module. It implements Sandbox.
type Instance struct {
	module *Module
	mod    api.Module
	alloc  api.Function
	free   api.Function
	stderr bytes.Buffer
	id     string
	mu     sync.Mutex
	closed bool
}

var _ Sandbox = (*Instance)(nil)

func newInstance(m *Module) *Instance {
	return &Instance{
		module: m,
		id:     uuid.NewString(),
	}
}

// ID returns the instance identifier used in logs.
func (i *Instance) ID() string {
	return i.id
}

// Module returns the compiled module this instance runs.
func (i *Instance) Module() *Module {
	return i.module
}

// HasExport reports whether the guest exports symbol.
func (i *Instance) HasExport(symbol string) bool {
	return i.module.HasExport(symbol)
}

// CheckExport returns an error unless symbol is callable through the ABI.
func (i *Instance) CheckExport(symbol string) error {
	return i.module.CheckExport(symbol)
}

// instantiate replaces the current guest with a fresh one. Callers hold mu
// or own the instance exclusively.
func (i *Instance) instantiate(ctx context.Context) error {
	if i.mod != nil {
		_ = i.mod.Close(ctx)
		i.mod = nil
	}
	i.stderr.Reset()

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithStderr(&i.stderr)
	if starts := i.module.loader.cfg.StartFunctions; len(starts) > 0 {
		cfg = cfg.WithStartFunctions(starts...)
	}

	mod, err := i.module.loader.runtime.InstantiateModule(ctx, i.module.compiled, cfg)
	if err != nil {
		return errors.Instantiation(i.module.name, err)
	}

	alloc := lookup(mod, abi.AllocExport, abi.AllocFallbacks)
	if alloc == nil {
		_ = mod.Close(ctx)
		return errors.New(errors.PhaseLoad, errors.KindMissingExport).
			Detail("wasm module %q exports no allocator (%s)", i.module.name, abi.AllocExport).
			Value(abi.AllocExport).
			Build()
	}
	if mod.Memory() == nil {
		_ = mod.Close(ctx)
		return errors.New(errors.PhaseLoad, errors.KindMissingExport).
			Detail("wasm module %q exports no memory", i.module.name).
			Build()
	}

	i.mod = mod
	i.alloc = alloc
	i.free = lookup(mod, abi.FreeExport, abi.FreeFallbacks)

	Logger().Debug("instantiated module",
		zap.String("module", i.module.name),
		zap.String("instance", i.id))
	return nil
}

func lookup(mod api.Module, name string, fallbacks []string) api.Function {
	if fn := mod.ExportedFunction(name); fn != nil {
		return fn
	}
	for _, alt := range fallbacks {
		if fn := mod.ExportedFunction(alt); fn != nil {
			return fn
		}
	}
	return nil
}

// Call implements Sandbox.
func (i *Instance) Call(ctx context.Context, symbol string, payload []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, errors.Closed(errors.PhaseInvoke, "sandbox instance")
	}
	// A previous re-instantiation failed; try again before giving up.
	if i.mod == nil {
		if err := i.instantiate(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
	}
	// Only output of this call explains a trap.
	i.stderr.Reset()

	fn := i.mod.ExportedFunction(symbol)
	if fn == nil {
		return nil, errors.MissingExport(i.module.name, symbol)
	}
	if err := checkSignature(errors.PhaseInvoke, i.module.name, symbol, fn.Definition()); err != nil {
		return nil, err
	}

	if timeout := i.module.loader.cfg.CallTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	inPtr, err := i.write(ctx, payload)
	if err != nil {
		return nil, i.handle(ctx, abi.AllocExport, err)
	}

	res, err := fn.Call(ctx, uint64(inPtr), uint64(len(payload)))
	if err != nil {
		return nil, i.handle(ctx, symbol, err)
	}

	outPtr, outLen := abi.UnpackPtrLen(res[0])
	mem := i.mod.Memory()
	view, ok := mem.Read(outPtr, outLen)
	if !ok {
		size := mem.Size()
		i.release(ctx, inPtr, uint32(len(payload)))
		return nil, errors.OutOfBounds(errors.PhaseInvoke, outPtr, outLen, size)
	}
	out := bytes.Clone(view)

	// A failed free resets the guest; outPtr belongs to the old instance.
	if i.release(ctx, inPtr, uint32(len(payload))) {
		i.release(ctx, outPtr, outLen)
	}
	return out, nil
}

// write copies payload into a guest-allocated buffer.
func (i *Instance) write(ctx context.Context, payload []byte) (uint32, error) {
	res, err := i.alloc.Call(ctx, uint64(len(payload)))
	if err != nil {
		return 0, err
	}
	ptr := uint32(res[0])
	mem := i.mod.Memory()
	if !mem.Write(ptr, payload) {
		// The allocator handed out memory it does not own.
		size := mem.Size()
		i.reset(ctx)
		return 0, errors.OutOfBounds(errors.PhaseInvoke, ptr, uint32(len(payload)), size)
	}
	return ptr, nil
}

// release hands a buffer back to the guest. It reports false when free
// failed and the guest was reset.
func (i *Instance) release(ctx context.Context, ptr, size uint32) bool {
	if i.free == nil || i.mod == nil {
		return true
	}
	if _, err := i.free.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		Logger().Warn("guest free failed",
			zap.String("module", i.module.name),
			zap.String("instance", i.id),
			zap.Error(err))
		i.reset(ctx)
		return false
	}
	return true
}

// handle turns a failed guest call into a TrapError and resets the guest.
// Host-side errors pass through unchanged. A call cancelled by the caller
// returns the context error.
func (i *Instance) handle(ctx context.Context, symbol string, err error) error {
	var structured *errors.Error
	if errors.As(err, &structured) {
		return err
	}

	var exit *sys.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == sys.ExitCodeContextCanceled && ctx.Err() != nil {
		Logger().Debug("guest call cancelled",
			zap.String("module", i.module.name),
			zap.String("instance", i.id),
			zap.String("symbol", symbol))
		i.reset(ctx)
		return ctx.Err()
	}

	trap := &TrapError{
		Symbol: symbol,
		Reason: trapReason(err, i.stderr.String()),
		Cause:  err,
	}
	Logger().Warn("guest trapped, re-instantiating",
		zap.String("module", i.module.name),
		zap.String("instance", i.id),
		zap.String("symbol", symbol),
		zap.String("reason", trap.Reason))
	i.reset(ctx)
	return trap
}

func (i *Instance) reset(ctx context.Context) {
	if err := i.instantiate(context.WithoutCancel(ctx)); err != nil {
		Logger().Error("re-instantiation failed",
			zap.String("module", i.module.name),
			zap.String("instance", i.id),
			zap.Error(err))
	}
}

// trapReason extracts a one-line reason from a wazero call error. A Go
// panic prints "panic: ..." to stderr before the guest traps or exits; that
// line wins over the wazero message.
func trapReason(err error, stderr string) string {
	var exit *sys.ExitError
	if errors.As(err, &exit) {
		switch exit.ExitCode() {
		case sys.ExitCodeDeadlineExceeded:
			return "deadline exceeded"
		case sys.ExitCodeContextCanceled:
			return "context canceled"
		}
	}
	if reason := panicLine(stderr); reason != "" {
		return reason
	}
	if exit != nil {
		if line := firstLine(stderr); line != "" {
			return line
		}
		return fmt.Sprintf("exit code %d", exit.ExitCode())
	}
	return strings.TrimPrefix(firstLine(err.Error()), "wasm error: ")
}

func panicLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if reason, ok := strings.CutPrefix(strings.TrimSpace(line), "panic: "); ok {
			return reason
		}
	}
	return ""
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Close releases the guest instance. Further calls fail.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if i.mod == nil {
		return nil
	}
	err := i.mod.Close(ctx)
	i.mod = nil
	return err
}
