package config

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger: a text handler on stderr, Debug
// level when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
