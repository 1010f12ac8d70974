// Package logging provides the structured Logger interface injected into
// every pipeline stage, a no-op implementation for tests, and a
// production backend on github.com/charmbracelet/log.
package logging

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the structured logging contract used throughout the
// pipeline. Implementations must be safe for concurrent use, since every
// stage (Capture, Worker, Playback, Monitor) logs independently.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)

	// With returns a Logger that prepends the given key-value pairs to
	// every subsequent call, for per-session/per-stage tagging.
	With(keyvals ...any) Logger
}

// NoOpLogger discards everything. Used as the zero-value default so
// callers never need a nil check.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, keyvals ...any) {}
func (NoOpLogger) Info(msg string, keyvals ...any)  {}
func (NoOpLogger) Warn(msg string, keyvals ...any)  {}
func (NoOpLogger) Error(msg string, keyvals ...any) {}
func (n NoOpLogger) With(keyvals ...any) Logger     { return n }

// charmLogger adapts *charmlog.Logger to the Logger interface.
type charmLogger struct {
	l *charmlog.Logger
}

// NewCharmLogger creates a production Logger backed by charmbracelet/log,
// writing structured, leveled output to stderr.
func NewCharmLogger() Logger {
	l := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})
	return &charmLogger{l: l}
}

func (c *charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c *charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c *charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c *charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

func (c *charmLogger) With(keyvals ...any) Logger {
	return &charmLogger{l: c.l.With(keyvals...)}
}
