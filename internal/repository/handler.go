package repository

import (
	"context"
	"encoding/json"
)

// Wildcard registers a handler for every command name without an explicit
// registration, such as commands retired from the application but still
// present in old journals.
const Wildcard = "*"

// Arg is the canonical JSON encoding of a command argument. Handlers see the
// same bytes during live execution and during replay.
type Arg json.RawMessage

// Decode unmarshals the argument into v. A missing argument leaves v untouched.
func (a Arg) Decode(v any) error {
	if len(a) == 0 {
		return nil
	}
	return json.Unmarshal(a, v)
}

// IsNull reports whether the command was executed without an argument.
func (a Arg) IsNull() bool {
	return len(a) == 0 || string(a) == "null"
}

// MarshalJSON emits the argument verbatim.
func (a Arg) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte("null"), nil
	}
	return a, nil
}

func (a Arg) String() string {
	if len(a) == 0 {
		return "null"
	}
	return string(a)
}

// Invocation describes the command being applied.
type Invocation[M any] struct {
	Model  M
	Name   string
	Arg    Arg
	Replay bool // true while rebuilding the model from the journal
}

// Handler applies a command to the model and returns a result for the caller.
// During replay the result is discarded.
type Handler[M any] func(ctx context.Context, model M, arg Arg, inv Invocation[M]) (any, error)

// QueryFunc reads from the model. It must not modify it.
type QueryFunc[M any] func(ctx context.Context, model M) (any, error)

// Typed adapts a handler taking a decoded argument of type A.
//
//	repo.Register("add-post", repository.Typed(func(ctx context.Context, b *Blog, p Post, _ repository.Invocation[*Blog]) (any, error) {
//	    b.Posts[p.ID] = p
//	    return p, nil
//	}))
func Typed[A, M any](fn func(ctx context.Context, model M, arg A, inv Invocation[M]) (any, error)) Handler[M] {
	return func(ctx context.Context, model M, arg Arg, inv Invocation[M]) (any, error) {
		var a A
		if err := arg.Decode(&a); err != nil {
			return nil, &ArgumentError{Command: inv.Name, Err: err}
		}
		return fn(ctx, model, a, inv)
	}
}
