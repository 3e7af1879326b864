package sandbox

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the sandbox package logger.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// SetLogger replaces the package logger. A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}
