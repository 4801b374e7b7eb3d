// Package rpclog is a minimal structured-logging wrapper around log/slog,
// shaped after go-ethereum's own log package: a handful of named levels and
// a constructor that returns a logger pre-bound with contextual key/value
// pairs, instead of a bare package-level logger.
package rpclog

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the interface every component in this module logs through.
type Logger interface {
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	With(ctx ...any) Logger
}

// LevelTrace sits below slog.LevelDebug, matching go-ethereum's five-level
// scheme (Trace/Debug/Info/Warn/Error) instead of slog's four.
const LevelTrace = slog.Level(-8)

type logger struct {
	inner *slog.Logger
}

var root Logger = &logger{inner: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))}

// Root returns the process-wide default logger. Tests and alternative
// entry points may call SetRoot to replace it.
func Root() Logger { return root }

// SetRoot replaces the process-wide default logger; intended for main() and
// for tests that want to capture output.
func SetRoot(l Logger) { root = l }

// New returns a logger with ctx (alternating key, value pairs) bound to
// every subsequent record, e.g. New("component", "statecache").
func New(ctx ...any) Logger {
	return root.With(ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) { l.inner.Log(context.Background(), LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.inner.Debug(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.inner.Info(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.inner.Warn(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.inner.Error(msg, ctx...) }

func (l *logger) With(ctx ...any) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}
