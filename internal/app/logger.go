package app

import (
	"io"
	"log/slog"
)

// newLogger builds the application logger from the validated config. The
// global default logger is left untouched so several Apps can coexist.
func newLogger(cfg *Config, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug && cfg.LogFormat == "json"}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(outW, opts)
	} else {
		h = slog.NewTextHandler(outW, opts)
	}
	return slog.New(h).With("app", "nodegraph")
}
