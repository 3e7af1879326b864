package sandbox

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/wasm-udf/errors"
)

// Sandbox is one guest instance able to serve calls. Implementations
// serialize calls internally.
type Sandbox interface {
	// Call runs the export named symbol with payload as its input buffer and
	// returns a copy of the response frame. A guest trap is reported as
	// *TrapError.
	Call(ctx context.Context, symbol string, payload []byte) ([]byte, error)
	Close(ctx context.Context) error
}

// Exporter is implemented by sandboxes that can list their exports ahead of
// a call.
type Exporter interface {
	HasExport(symbol string) bool
	// CheckExport returns an error unless symbol is callable through the
	// guest ABI.
	CheckExport(symbol string) error
}

// Loader compiles modules and opens sandboxes on a shared wazero runtime.
type Loader struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	modules map[string]*Module
	natives map[string]*Native
	group   singleflight.Group
	cfg     Config
	mu      sync.RWMutex
	closed  bool
}

// NewLoader creates a loader with its own wazero runtime.
func NewLoader(ctx context.Context, cfg Config) (*Loader, error) {
	var cache wazero.CompilationCache
	if cfg.CacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Load("create compilation cache", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.MemoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if cfg.WASI {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
			rt.Close(ctx)
			if cache != nil {
				cache.Close(ctx)
			}
			return nil, errors.Load("instantiate WASI", err)
		}
	}

	return &Loader{
		runtime: rt,
		cache:   cache,
		modules: make(map[string]*Module),
		natives: make(map[string]*Native),
		cfg:     cfg,
	}, nil
}

// Config returns the loader configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

// Resolve maps a module reference to the path it is loaded from.
func (l *Loader) Resolve(ref string) string {
	if filepath.IsAbs(ref) || l.cfg.Root == "" {
		return filepath.Clean(ref)
	}
	return filepath.Join(l.cfg.Root, ref)
}

// RegisterNative makes Open return n for ref instead of loading a file.
func (l *Loader) RegisterNative(ref string, n *Native) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.natives[ref] = n
}

// Load compiles the module at ref, or returns the cached compilation.
// Concurrent loads of the same path compile once.
func (l *Loader) Load(ctx context.Context, ref string) (*Module, error) {
	path := l.Resolve(ref)
	return l.load(ctx, path, func() ([]byte, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).
					Detail("wasm module %q not found", path).
					Cause(err).
					Build()
			}
			return nil, errors.Load("read module "+path, err)
		}
		return data, nil
	})
}

// LoadBytes compiles wasm under name. A module already cached under name is
// returned as is.
func (l *Loader) LoadBytes(ctx context.Context, name string, wasm []byte) (*Module, error) {
	return l.load(ctx, name, func() ([]byte, error) { return wasm, nil })
}

func (l *Loader) load(ctx context.Context, key string, read func() ([]byte, error)) (*Module, error) {
	if m, ok, err := l.cached(key); ok || err != nil {
		return m, err
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if m, ok, err := l.cached(key); ok || err != nil {
			return m, err
		}

		data, err := read()
		if err != nil {
			return nil, err
		}

		compiled, err := l.runtime.CompileModule(ctx, data)
		if err != nil {
			return nil, errors.Compile(key, err)
		}

		m := &Module{
			loader:   l,
			name:     key,
			compiled: compiled,
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed {
			compiled.Close(ctx)
			return nil, errors.Closed(errors.PhaseLoad, "loader")
		}
		l.modules[key] = m

		Logger().Debug("compiled module",
			zap.String("module", key),
			zap.Int("bytes", len(data)),
			zap.Strings("functions", m.Functions()))
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

func (l *Loader) cached(key string) (*Module, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, false, errors.Closed(errors.PhaseLoad, "loader")
	}
	m, ok := l.modules[key]
	return m, ok, nil
}

// Open returns a ready sandbox for ref. A native module registered under
// ref takes precedence over the filesystem.
func (l *Loader) Open(ctx context.Context, ref string) (Sandbox, error) {
	l.mu.RLock()
	n, ok := l.natives[ref]
	l.mu.RUnlock()
	if ok {
		return n, nil
	}

	m, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return m.Instantiate(ctx)
}

// Close releases the runtime, every compiled module and every instance
// created from them.
func (l *Loader) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.modules = nil
	l.mu.Unlock()

	err := l.runtime.Close(ctx)
	if l.cache != nil {
		if cerr := l.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
