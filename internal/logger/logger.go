// Package logger exposes the process-wide structured logger.  It is
// a no-op until Initialize is called from main, so packages may log
// unconditionally.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared logger instance.
var Log = zap.NewNop()

// Initialize replaces Log with a production zap logger at the given
// level ("debug", "info", "warn", "error").
func Initialize(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = l
	return nil
}
