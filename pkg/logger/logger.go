// Package logger builds the structured logger shared by the relay.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New returns a slog.Logger writing human-readable lines to stderr.
func New(debug bool) *slog.Logger {
	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}
	return NewWithWriter(os.Stderr, level)
}

// NewWithLevel is like New but takes a level name (debug, info, warn, error).
// Unknown names fall back to info.
func NewWithLevel(name string) *slog.Logger {
	return NewWithWriter(os.Stderr, ParseLevel(name))
}

// NewWithWriter returns a slog.Logger backed by a charmbracelet handler on w.
func NewWithWriter(w io.Writer, level charmlog.Level) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	return slog.New(handler)
}

// ParseLevel maps a level name to a charmbracelet level.
func ParseLevel(name string) charmlog.Level {
	lvl, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return charmlog.InfoLevel
	}
	return lvl
}
