// Package logger holds the structured logger shared by every engine package.
// By default nothing is logged; call SetLogger to enable output.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var (
	loggerPtr  atomic.Pointer[slog.Logger]
	assertions atomic.Bool
)

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
	assertions.Store(true)
}

// SetLogger installs the logger used by the engine. Pass nil to restore silent behavior.
// Safe for concurrent use.
//
// Log levels used by the engine:
//   - slog.LevelDebug: per-frame decisions (shadow map allocation, atlas slot moves, cache clears)
//   - slog.LevelWarn: degraded rendering (undeclared bind names, missing targets, failed shaders)
//   - slog.LevelError: backend failures and violated preconditions
//
// Parameters:
//   - l: the logger to install, or nil
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current engine logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// SetAssertions enables or disables precondition checks reported through Assert.
func SetAssertions(enabled bool) {
	assertions.Store(enabled)
}

// Assert logs msg at error level when cond is false. It never panics; a failed precondition
// degrades to a logged no-op at the call site.
//
// Returns:
//   - bool: cond, so callers can write `if !logger.Assert(...) { return }`
func Assert(cond bool, msg string, args ...any) bool {
	if !cond && assertions.Load() {
		Logger().Error("assertion failed: "+msg, args...)
	}
	return cond
}
