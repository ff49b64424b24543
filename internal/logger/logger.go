// Package logger provides the application-wide logger.
//
// Call sites use printf-style helpers; the output is structured JSON produced
// by zap (or a console encoding for local use).
package logger

import (
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newLogger("json")
	sugar = sugared(base)
)

// sugared skips the helper frame so callers are reported, not this package.
func sugared(l *zap.Logger) *zap.SugaredLogger {
	return l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func sugarLogger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func newLogger(format string) *zap.Logger {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.Level = level
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init rebuilds the logger with the given output format ("json" or "console").
func Init(format string) {
	l := newLogger(format)
	mu.Lock()
	base, sugar = l, sugared(l)
	mu.Unlock()
}

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	if v {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// L returns the underlying structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Replace swaps the underlying logger and returns a function restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prev, prevSugar := base, sugar
	base, sugar = l, sugared(l)
	mu.Unlock()
	return func() {
		mu.Lock()
		base, sugar = prev, prevSugar
		mu.Unlock()
	}
}

// Sync flushes buffered output.
func Sync() {
	_ = L().Sync()
}

// Debug logs a debug message.
func Debug(format string, args ...any) {
	sugarLogger().Debugf(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	sugarLogger().Infof(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	sugarLogger().Warnf(format, args...)
}

// Error logs an error.
func Error(format string, args ...any) {
	sugarLogger().Errorf(format, args...)
}

// Mask renders a secret for logging without revealing it.
func Mask(secret string) string {
	if secret == "" {
		return "<empty>"
	}
	return "<redacted:" + strconv.Itoa(len(secret)) + ">"
}
