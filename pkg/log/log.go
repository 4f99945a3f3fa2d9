// Package log configures the process-wide slog logger and hands out
// per-module children of it. Binaries call Setup once at startup; everything
// else asks for a logger tagged with its module name.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the default text logger on stderr at the given level.
// Unknown levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with a module attribute, so
// api, worker and scheduler log lines are distinguishable in one stream.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
