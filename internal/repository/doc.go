// Package repository implements a prevalent system: the whole application
// state lives in an in-memory model that only registered commands may
// change.
//
// ARCHITECTURE:
//
// Every Execute call is appended to a journal before its handler touches the
// model. On start the model is rebuilt by replaying the journal, in order,
// against the model the repository was constructed with. The model itself is
// never persisted.
//
// Request flow:
//  1. The first Query or Execute triggers the one-time replay
//  2. Query takes the shared lock, Execute the exclusive lock
//  3. Execute appends {timestamp, name, arg} to the journal
//  4. The handler (or query function) runs against the model
//  5. The result is deep-copied before it leaves the repository
//
// INVARIANTS:
//   - At most one mutation of the model is in flight; queries may overlap
//   - A command that returned successfully is already durable
//   - Replay happens at most once per Repository; a failed replay is sticky
//   - Callers never receive a reference into the model
//
// Handlers must be deterministic and may only change the model. Side effects
// that must not repeat on replay (notifications, emails) should be skipped
// when Invocation.Replay is true.
package repository
