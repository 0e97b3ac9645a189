// Package observability sets up the application logger. The TUI owns the
// terminal, so everything logs to a file as JSON lines.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alexkh/inforno/internal/appinfo"
)

// NewFileLogger opens (or creates) the log file in append mode and
// returns a logger writing JSON lines to it, plus a close func.
func NewFileLogger(path string) (*slog.Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	log := newLogger(f)
	log.Info("logger started", "app", appinfo.Display())
	return log, f.Close, nil
}

// NewDiscardLogger returns a logger that drops everything; used by tests
// and by runs where no log path resolves.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
