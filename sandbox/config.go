package sandbox

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-udf/errors"
)

// Config holds configuration for a Loader.
type Config struct {
	// Root is the directory relative module references are resolved against.
	// Empty means the process working directory.
	Root string `yaml:"root"`

	// CacheDir enables wazero's on-disk compilation cache when set.
	CacheDir string `yaml:"cache_dir"`

	// StartFunctions run once per instantiation. Reactor guests built with
	// -buildmode=c-shared export _initialize.
	StartFunctions []string `yaml:"start_functions"`

	// CallTimeout bounds a single guest call. A call that runs past it is
	// treated as a trap. 0 disables the limit.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means wazero's default (65536 pages = 4GB).
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`

	// WASI instantiates wasi_snapshot_preview1 so guests compiled for wasip1
	// can link. Filesystem, network and environment stay inaccessible.
	WASI bool `yaml:"wasi"`
}

// DefaultConfig returns the configuration used for wasip1 reactor guests.
func DefaultConfig() Config {
	return Config{
		StartFunctions:   []string{"_initialize"},
		MemoryLimitPages: 1024,
		WASI:             true,
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Load("read config "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("parse config %s", path).
			Cause(err).
			Build()
	}
	return cfg, nil
}
