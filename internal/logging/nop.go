package logging

import (
	"io"
	"log/slog"
)

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewTextLogger(io.Discard, slog.LevelError)
}
