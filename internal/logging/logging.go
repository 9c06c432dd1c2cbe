// Package logging provides the structured logger used across the service.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap sugared logger behind the small interface the rest of
// the application consumes. Arguments are alternating key/value pairs.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a production logger writing JSON to stdout.
func NewLogger() *Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap only fails on invalid config; fall back to a no-op logger
		// rather than aborting startup.
		return &Logger{sugar: zap.NewNop().Sugar()}
	}
	return &Logger{sugar: l.Sugar()}
}

// NewDevLogger creates a human-readable console logger for local use.
func NewDevLogger() *Logger {
	l, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		return &Logger{sugar: zap.NewNop().Sugar()}
	}
	return &Logger{sugar: l.Sugar()}
}

// NewNop creates a logger that discards everything. Used in tests.
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// Info logs an informational message with key/value context.
func (l *Logger) Info(msg string, args ...any) { l.sugar.Infow(msg, args...) }

// Warn logs a warning message with key/value context.
func (l *Logger) Warn(msg string, args ...any) { l.sugar.Warnw(msg, args...) }

// Error logs an error message with key/value context.
func (l *Logger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Debug logs a debug message with key/value context.
func (l *Logger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }

// Sync flushes buffered log entries. Call on shutdown.
func (l *Logger) Sync() error { return l.sugar.Sync() }
