// Package log provides structured logging for the rangefinder.
//
// Records are written to stderr because stdout carries the MCP protocol.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvLevel overrides the configured log level when set.
const EnvLevel = "RANGEFINDER_LOG_LEVEL"

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is treated as info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the global logger at the given level, writing text records
// to stderr. RANGEFINDER_LOG_LEVEL takes precedence over level.
func Init(level string) {
	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}
	InitWriter(os.Stderr, level)
}

// InitWriter installs the global logger writing to w.
func InitWriter(w io.Writer, level string) {
	l := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))

	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the global logger, initializing it at info level on first use.
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("info")
	return L()
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
