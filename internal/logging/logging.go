package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, "text")
}

// NewWithWriter builds a slog.Logger backed by a charm log handler.
// format is "text", "logfmt" or "json".
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           levelFromString(level),
		Prefix:          "skynet",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatterFromString(format),
	})
	return slog.New(handler)
}

func levelFromString(value string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return charmlog.ErrorLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "info":
		return charmlog.InfoLevel
	default:
		return charmlog.DebugLevel
	}
}

func formatterFromString(value string) charmlog.Formatter {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "json":
		return charmlog.JSONFormatter
	case "logfmt":
		return charmlog.LogfmtFormatter
	default:
		return charmlog.TextFormatter
	}
}
