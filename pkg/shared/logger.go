package helpers

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger creates a JSON slog.Logger on stdout tagged with the service name.
// logLevel can be "debug", "info", "warn", or "error"; anything else falls back to info.
func NewLogger(serviceName, logLevel string) *slog.Logger {
	return NewLoggerTo(os.Stdout, serviceName, logLevel)
}

func NewLoggerTo(w io.Writer, serviceName, logLevel string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler).With("service", serviceName)
}

// Discard returns a logger that drops everything, used by tests and by
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
