package app

import (
	"io"
	"log/slog"
	"strings"
)

// newLogger creates a logger writing to outW. It does not touch the global
// logger, so several apps can run side by side in tests. Unknown levels fall
// back to info; any format other than "json" means text.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(formatStr, "json") {
		handler = slog.NewJSONHandler(outW, opts)
	} else {
		handler = slog.NewTextHandler(outW, opts)
	}
	return slog.New(handler).With("app", "amlpipe")
}
