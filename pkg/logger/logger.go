// Package logger provides a process-wide structured logger built on log/slog.
//
// It mirrors the leveled, key-value logging surface ToolHive's pkg/logger
// exposes (Debug/Info/Warn/Error, each with f and w variants) so the rest
// of the module can log without depending on slog directly.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var singleton atomic.Pointer[slog.Logger]

func init() {
	singleton.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Options configures Initialize.
type Options struct {
	// JSON selects the JSON handler instead of the human-readable text handler.
	JSON bool
	// Debug enables debug-level logging.
	Debug bool
	// Output overrides the destination; defaults to os.Stderr.
	Output *os.File
}

// Initialize installs the process-wide logger. Safe to call more than once;
// the last call wins. Called from cobra's PersistentPreRun.
func Initialize(opts Options) {
	out := io(opts.Output)
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	singleton.Store(slog.New(handler))
}

func io(f *os.File) *os.File {
	if f != nil {
		return f
	}
	return os.Stderr
}

func l() *slog.Logger { return singleton.Load() }

// Debug logs at debug level.
func Debug(msg string) { l().Debug(msg) }

// Debugf logs a formatted message at debug level.
func Debugf(format string, args ...any) { l().Debug(sprintf(format, args...)) }

// Debugw logs a message with key-value pairs at debug level.
func Debugw(msg string, kv ...any) { l().Debug(msg, kv...) }

// Info logs at info level.
func Info(msg string) { l().Info(msg) }

// Infof logs a formatted message at info level.
func Infof(format string, args ...any) { l().Info(sprintf(format, args...)) }

// Infow logs a message with key-value pairs at info level.
func Infow(msg string, kv ...any) { l().Info(msg, kv...) }

// Warn logs at warn level.
func Warn(msg string) { l().Warn(msg) }

// Warnf logs a formatted message at warn level.
func Warnf(format string, args ...any) { l().Warn(sprintf(format, args...)) }

// Warnw logs a message with key-value pairs at warn level.
func Warnw(msg string, kv ...any) { l().Warn(msg, kv...) }

// Error logs at error level.
func Error(msg string) { l().Error(msg) }

// Errorf logs a formatted message at error level.
func Errorf(format string, args ...any) { l().Error(sprintf(format, args...)) }

// Errorw logs a message with key-value pairs at error level.
func Errorw(msg string, kv ...any) { l().Error(msg, kv...) }

// FromContext returns a logger is a no-op placeholder for call sites that
// want to attach request-scoped fields later; currently returns the
// singleton since the module does not thread per-request loggers yet.
func FromContext(_ context.Context) *slog.Logger { return l() }

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
