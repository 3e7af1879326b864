package udf

import (
	"github.com/wippyai/wasm-udf/bridge"
	"github.com/wippyai/wasm-udf/function"
)

// Option configures a Factory or a Function.
type Option func(*config)

type config struct {
	bridge     *bridge.Bridge
	volatility function.Volatility
	shared     bool
}

func defaultConfig() config {
	return config{volatility: function.Volatile}
}

func buildConfig(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bridge == nil {
		cfg.bridge = bridge.New()
	}
	return cfg
}

// WithBridge sets the bridge used for guest calls, for example one that
// records metrics.
func WithBridge(b *bridge.Bridge) Option {
	return func(c *config) {
		c.bridge = b
	}
}

// WithVolatility overrides the default Volatile classification.
func WithVolatility(v function.Volatility) Option {
	return func(c *config) {
		c.volatility = v
	}
}

// WithSharedModules makes the factory open each module once and share the
// sandbox among every function defined on it. The sandbox closes when the
// last of those functions is closed. Calls from all sharing functions are
// serialized on the one instance.
func WithSharedModules() Option {
	return func(c *config) {
		c.shared = true
	}
}
