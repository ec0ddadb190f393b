// Package logging adapts the ambient structured-logging stack (logiface,
// with the stumpy JSON writer) behind a small interface the rest of this
// module depends on, so the event loop, the validators and the test
// harness all emit through the same sink without importing logiface's
// generic API directly everywhere.
package logging

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging interface used throughout this module.
// It intentionally mirrors a minimal leveled-logging surface rather than
// exposing logiface's generic Builder type, so call sites stay simple:
// `log.Trace("category", "message", "key", val, ...)`.
type Logger struct {
	backend *logiface.Logger[*stumpy.Event]
}

// New builds a Logger writing newline-delimited JSON to w at minLevel and
// above.
func New(w io.Writer, minLevel logiface.Level) *Logger {
	backend := stumpy.L.New(
		stumpy.L.WithLevel(minLevel),
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	)
	return &Logger{backend: backend}
}

// NewDiscard builds a Logger that drops everything; useful as a default
// for components constructed without an explicit logger.
func NewDiscard() *Logger {
	return New(io.Discard, logiface.LevelEmergency)
}

// NewStderr builds a Logger writing to os.Stderr at LevelInformational,
// the default for a host process that hasn't configured anything else.
func NewStderr() *Logger {
	return New(os.Stderr, logiface.LevelInformational)
}

func (l *Logger) fields(b *logiface.Builder[*stumpy.Event], kv []any) *logiface.Builder[*stumpy.Event] {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Any(key, kv[i+1])
	}
	return b
}

// Trace logs at trace level: category, message, then alternating key/value pairs.
func (l *Logger) Trace(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Trace().Str("category", category), kv).Log(msg)
}

// Debug logs at debug level.
func (l *Logger) Debug(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Debug().Str("category", category), kv).Log(msg)
}

// Info logs at informational level.
func (l *Logger) Info(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Info().Str("category", category), kv).Log(msg)
}

// Warn logs at warning level.
func (l *Logger) Warn(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Warning().Str("category", category), kv).Log(msg)
}

// Error logs at error level.
func (l *Logger) Error(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Err().Str("category", category), kv).Log(msg)
}

// Fatal logs at the highest severity used by this module (critical):
// reserved for programmer-bug and kernel-overflow conditions that abort
// the loop, matching the error-handling design's "abort, do not recover"
// disposition.
func (l *Logger) Fatal(category, msg string, kv ...any) {
	if l == nil || l.backend == nil {
		return
	}
	l.fields(l.backend.Crit().Str("category", category), kv).Log(msg)
}
