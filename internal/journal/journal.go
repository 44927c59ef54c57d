package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCorrupt marks records that could not be decoded or are out of order.
var ErrCorrupt = errors.New("corrupt journal record")

// ErrUnusable is returned by appends after a failed write could not be rolled
// back. The journal on disk may end in a partial record.
var ErrUnusable = errors.New("journal unusable after failed append")

// Record is one journaled command invocation.
type Record struct {
	Seq       int64           `json:"seq"`
	ID        string          `json:"id,omitempty"`
	Timestamp time.Time       `json:"t"`
	Name      string          `json:"n"`
	Arg       json.RawMessage `json:"a"`
}

// ReplayFunc receives records during Replay. Returning an error stops the
// replay and the error is returned from Replay unchanged.
type ReplayFunc func(ctx context.Context, rec Record) error

// Journal is the durable log contract used by the repository.
type Journal interface {
	// Append durably writes rec after every previously appended record and
	// returns the sequence number it was stored under. rec.Seq is ignored.
	Append(ctx context.Context, rec Record) (int64, error)

	// Replay calls fn for every record in append order, one at a time.
	Replay(ctx context.Context, fn ReplayFunc) error

	// Close releases the underlying storage handle.
	Close() error
}

// Error describes a failed journal operation.
type Error struct {
	Op   string // "open", "append" or "replay"
	Path string // file path, database path or stream key
	Seq  int64  // record involved, 0 if unknown
	Err  error
}

func (e *Error) Error() string {
	if e.Seq > 0 {
		return fmt.Sprintf("journal %s %s (seq %d): %v", e.Op, e.Path, e.Seq, e.Err)
	}
	return fmt.Sprintf("journal %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsCorrupt reports whether err was caused by a damaged record.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// validate checks the fields every stored record must carry.
func validate(rec Record, want int64) error {
	if rec.Seq != 0 && rec.Seq != want {
		return corrupt("sequence %d found where %d was expected", rec.Seq, want)
	}
	if rec.Name == "" {
		return corrupt("missing command name")
	}
	return nil
}
