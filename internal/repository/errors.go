package repository

import (
	"errors"
	"fmt"
)

// ErrUnknownCommand is wrapped by CommandError when no handler (and no
// wildcard) is registered for a command name.
var ErrUnknownCommand = errors.New("unknown command")

// ErrEmptyCommandName is wrapped by CommandError for Execute("").
var ErrEmptyCommandName = errors.New("empty command name")

// ConfigurationError reports a repository constructed without required
// parameters. It is returned before any I/O happens.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// CommandError reports a command name that resolves to no handler, during a
// live Execute or during replay.
type CommandError struct {
	Name string
	Err  error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q: %v", e.Name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ArgumentError reports a command argument that could not be encoded for the
// journal or decoded by a typed handler.
type ArgumentError struct {
	Command string
	Err     error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument for command %q: %v", e.Command, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// InitError is the sticky result of a failed replay. The same value is
// returned to every Query and Execute call on the repository.
type InitError struct {
	Seq      int64  // journal record that failed, 0 if the journal itself failed
	Command  string // command name of that record
	Replayed int    // records applied before the failure
	Err      error
}

func (e *InitError) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("initialization failed at record %d (%s) after %d replayed: %v", e.Seq, e.Command, e.Replayed, e.Err)
	}
	return fmt.Sprintf("initialization failed after %d replayed: %v", e.Replayed, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// PoisonedError is returned by every call after a journaled command failed
// while the repository runs with PoisonOnHandlerError. The journal then holds
// a record whose effect is missing from the model.
type PoisonedError struct {
	Seq     int64
	Command string
	Err     error
}

func (e *PoisonedError) Error() string {
	return fmt.Sprintf("repository poisoned by command %q (record %d): %v", e.Command, e.Seq, e.Err)
}

func (e *PoisonedError) Unwrap() error {
	return e.Err
}

// IsCommandError reports whether err is (or wraps) a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
