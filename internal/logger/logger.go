// Package logger provides a small leveled logger used across the client.
//
// It wraps the standard library logger with a global verbosity threshold so
// protocol-level chatter (raw frames, liveness ticks) can be enabled without
// recompiling.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
)

// Level is the verbosity threshold used by the logger.
//
// Lower values are more verbose.
type Level int32

const (
	// LevelTrace enables extremely verbose logs (raw frames, liveness ticks).
	LevelTrace Level = iota
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug
	// LevelInfo enables informational logs (default).
	LevelInfo
	// LevelWarn enables only warnings and errors.
	LevelWarn
	// LevelError enables only error logs.
	LevelError
)

var currentLevel atomic.Int32

func init() {
	currentLevel.Store(int32(LevelInfo))
}

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// SetOutput replaces the writer used by the global logger.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetLevel sets the global log level threshold.
func SetLevel(level Level) {
	currentLevel.Store(int32(level))
}

// Enabled reports whether a level would be emitted by the current
// configuration.
func Enabled(level Level) bool {
	return level >= Level(currentLevel.Load())
}

func logf(level Level, prefix, format string, args ...any) {
	if !Enabled(level) {
		return
	}
	log.Printf(prefix+format, args...)
}

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) { logf(LevelTrace, "TRC ", format, args...) }

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) { logf(LevelDebug, "DBG ", format, args...) }

// Infof logs at INFO level.
func Infof(format string, args ...any) { logf(LevelInfo, "INF ", format, args...) }

// Warnf logs at WARN level.
func Warnf(format string, args ...any) { logf(LevelWarn, "WRN ", format, args...) }

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) { logf(LevelError, "ERR ", format, args...) }
