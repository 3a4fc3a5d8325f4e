package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup creates and installs the package-level default slog logger.
// Logs always go to stderr so stdout stays free for NDJSON predictions and
// evaluation reports. With jsonLogs true the handler emits JSON, which keeps
// stderr machine-parseable when fineprint runs under an experiment driver.
func Setup(level slog.Level, jsonLogs bool) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
