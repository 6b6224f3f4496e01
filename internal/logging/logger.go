package logging

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// NewStdoutHandler is the JSON handler every process logs through.
func NewStdoutHandler(level string) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLevel(level)})
}

// Setup installs the stdout JSON logger as the default, fanning out to extra
// handlers when given.
func Setup(level string, extra ...slog.Handler) *slog.Logger {
	var handler slog.Handler = NewStdoutHandler(level)
	if len(extra) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, extra...)...)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
