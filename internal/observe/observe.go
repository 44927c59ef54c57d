// Package observe defines the notification hooks a repository emits, so
// logging and metrics can be attached without the repository depending on
// either.
package observe

import (
	"encoding/json"
	"log/slog"
	"time"
)

// Operation names passed to Observer.Error.
const (
	OpInit    = "init"
	OpExecute = "execute"
	OpQuery   = "query"
)

// Observer receives repository notifications. Implementations must be safe
// for concurrent use and must not call back into the repository.
type Observer interface {
	// Initialized fires once after a successful replay.
	Initialized(replayed int, took time.Duration)
	// Executed fires after a live command returned successfully.
	Executed(name string, arg json.RawMessage, result any)
	// Error fires for every failure surfaced to a caller.
	Error(op string, err error)
}

// Nop ignores all notifications.
type Nop struct{}

func (Nop) Initialized(int, time.Duration)        {}
func (Nop) Executed(string, json.RawMessage, any) {}
func (Nop) Error(string, error)                   {}

// Logger writes notifications to a slog.Logger.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns an Observer logging to l, or to slog.Default() if l is nil.
func NewLogger(l *slog.Logger) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{log: l}
}

func (o *Logger) Initialized(replayed int, took time.Duration) {
	o.log.Info("initialization done", "replayed", replayed, "took", took)
}

func (o *Logger) Executed(name string, arg json.RawMessage, result any) {
	o.log.Debug("command executed", "command", name, "arg", string(arg), "result", result)
}

func (o *Logger) Error(op string, err error) {
	o.log.Error("repository error", "op", op, "error", err)
}

// Multi fans notifications out to every observer in order.
type Multi []Observer

func (m Multi) Initialized(replayed int, took time.Duration) {
	for _, o := range m {
		o.Initialized(replayed, took)
	}
}

func (m Multi) Executed(name string, arg json.RawMessage, result any) {
	for _, o := range m {
		o.Executed(name, arg, result)
	}
}

func (m Multi) Error(op string, err error) {
	for _, o := range m {
		o.Error(op, err)
	}
}
