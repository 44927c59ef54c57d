// Package journal provides append-only durable record stores for command
// invocations.
//
// A journal only grows. Every record holds the wall-clock time of the
// invocation, the command name and its canonical JSON argument, plus a
// sequence number assigned by the journal in append order:
//
//	{"seq":1,"id":"0190...","t":"2026-01-02T03:04:05Z","n":"add-post","a":{"id":"post#1"}}
//
// # Media
//
//   - File: newline-delimited JSON, fsync after every append (default)
//   - SQLite: one row per record, WAL mode with synchronous=FULL
//   - Redis: one stream entry per record
//
// # Replay
//
// Replay walks the records in append order and waits for each handler call
// before reading the next record. A journal that does not exist yet replays
// as empty. Any read or parse failure aborts the replay with an *Error so a
// damaged journal never yields a partial history.
package journal
