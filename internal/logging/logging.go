// Package logging owns construction of the runtime's structured logger.
// The engine logs through the logiface facade; the default backend is
// stumpy, a direct JSON writer. A nil Logger disables all output:
// logiface builder chains are nil-safe by design.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type used across the runtime.
type Logger = *logiface.Logger[*stumpy.Event]

// New builds a JSON logger writing to w at the given level.
func New(w io.Writer, level logiface.Level) Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	)
}

// Default builds the standard stderr logger at warning level.
func Default() Logger {
	return New(os.Stderr, logiface.LevelWarning)
}

// ParseLevel maps a config string onto a logiface level.
func ParseLevel(s string) (logiface.Level, bool) {
	switch s {
	case "trace":
		return logiface.LevelTrace, true
	case "debug":
		return logiface.LevelDebug, true
	case "info":
		return logiface.LevelInformational, true
	case "warning", "warn":
		return logiface.LevelWarning, true
	case "error":
		return logiface.LevelError, true
	default:
		return logiface.LevelDisabled, false
	}
}
