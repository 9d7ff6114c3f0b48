// Package debug constructs the loggers handed to the engine and adapter.
package debug

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a structured text logger writing to stderr. With
// verbose false only warnings and errors are emitted, which keeps the
// persistence-warning path visible without chatty query logging.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
