package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - records table with name index
const currentSchemaVersion = 1

// SQLite is a journal stored in a SQLite database.
//
// The database is configured with:
//   - WAL mode so inspection tools can read while the repository writes
//   - FULL synchronous mode: a committed append survives power loss
//   - 5-second busy timeout for lock contention
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Journal = (*SQLite)(nil)

// OpenSQLite creates or opens a journal database at path, creating the
// parent directory when it is missing.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, &Error{Op: "open", Path: path, Err: err}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Path: path, Err: fmt.Errorf("failed to connect to database: %w", err)}
	}

	// SQLite only supports one writer at a time, and :memory: databases are
	// per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	return &SQLite{db: db, path: path}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and stamps user_version.
// Databases written by a newer schema are refused.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Append inserts rec and returns its row sequence.
func (j *SQLite) Append(ctx context.Context, rec Record) (int64, error) {
	arg := string(rec.Arg)
	if arg == "" {
		arg = "null"
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO records (id, recorded_at, name, arg)
		VALUES (?, ?, ?, ?)
	`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Name,
		arg,
	)
	if err != nil {
		return 0, &Error{Op: "append", Path: j.path, Err: err}
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, &Error{Op: "append", Path: j.path, Err: fmt.Errorf("last insert id: %w", err)}
	}
	return seq, nil
}

// Replay streams rows ordered by seq.
func (j *SQLite) Replay(ctx context.Context, fn ReplayFunc) error {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, id, recorded_at, name, arg
		FROM records
		ORDER BY seq ASC
	`)
	if err != nil {
		return &Error{Op: "replay", Path: j.path, Err: err}
	}
	defer rows.Close()

	var last int64
	for rows.Next() {
		var (
			rec        Record
			recordedAt string
			arg        string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &recordedAt, &rec.Name, &arg); err != nil {
			return &Error{Op: "replay", Path: j.path, Seq: last + 1, Err: corrupt("scan: %v", err)}
		}
		if rec.Seq <= last {
			return &Error{Op: "replay", Path: j.path, Seq: rec.Seq, Err: corrupt("sequence %d after %d", rec.Seq, last)}
		}
		last = rec.Seq

		ts, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return &Error{Op: "replay", Path: j.path, Seq: rec.Seq, Err: corrupt("timestamp: %v", err)}
		}
		rec.Timestamp = ts

		if !json.Valid([]byte(arg)) {
			return &Error{Op: "replay", Path: j.path, Seq: rec.Seq, Err: corrupt("argument is not valid JSON")}
		}
		rec.Arg = json.RawMessage(arg)

		if rec.Name == "" {
			return &Error{Op: "replay", Path: j.path, Seq: rec.Seq, Err: corrupt("missing command name")}
		}

		if err := fn(ctx, rec); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return &Error{Op: "replay", Path: j.path, Seq: last + 1, Err: err}
	}
	return nil
}

// DB returns the underlying database for inspection.
func (j *SQLite) DB() *sql.DB {
	return j.db
}

// Close closes the database connection.
func (j *SQLite) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
