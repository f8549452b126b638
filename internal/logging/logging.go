// Package logging configures the structured logger shared by every command.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Format selects how records are rendered.
type Format string

const (
	FormatText   Format = "text"
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
)

// ParseLevel parses a log level string. Unknown values fall back to info.
func ParseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormat parses a format name. Unknown values fall back to text.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON
	case FormatLogfmt:
		return FormatLogfmt
	default:
		return FormatText
	}
}

// New creates a logger writing to stderr.
func New(level log.Level) *log.Logger {
	return NewWithOptions(os.Stderr, level, FormatText)
}

// NewWithOptions creates a logger writing to w in the given format.
func NewWithOptions(w io.Writer, level log.Level, format Format) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
	})
	switch format {
	case FormatJSON:
		l.SetFormatter(log.JSONFormatter)
		l.SetTimeFormat(time.RFC3339Nano)
	case FormatLogfmt:
		l.SetFormatter(log.LogfmtFormatter)
		l.SetTimeFormat(time.RFC3339Nano)
	}
	return l
}

// Discard returns a logger that discards all output.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}
