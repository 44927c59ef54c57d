package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// File is a newline-delimited JSON journal on the local file system.
//
// The file is opened lazily on the first append. If its directory does not
// exist, the directory is created and the append retried once. A failed
// write or sync is rolled back by truncating the file to its previous size,
// so a failed append leaves no trace on disk.
//
// Thread-safety: all methods are safe for concurrent use.
type File struct {
	path string

	mu     sync.Mutex
	f      *os.File
	seq    int64
	seqSet bool // seq reflects the records on disk
	broken error

	// writeLine writes and syncs one line. Tests replace it to inject
	// partial writes.
	writeLine func(f *os.File, line []byte) error
}

var _ Journal = (*File)(nil)

// NewFile returns a journal stored at path. No I/O happens until the first
// Append or Replay.
func NewFile(path string) *File {
	return &File{path: path, writeLine: writeAndSync}
}

func writeAndSync(f *os.File, line []byte) error {
	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

// Path returns the journal file location.
func (j *File) Path() string {
	return j.path
}

// Append writes rec as one JSON line and syncs it to disk.
func (j *File) Append(ctx context.Context, rec Record) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if j.broken != nil {
		return 0, &Error{Op: "append", Path: j.path, Err: errors.Join(ErrUnusable, j.broken)}
	}

	if !j.seqSet {
		n, err := j.count()
		if err != nil {
			return 0, err
		}
		j.seq, j.seqSet = n, true
	}

	rec.Seq = j.seq + 1
	line, err := json.Marshal(rec)
	if err != nil {
		return 0, &Error{Op: "append", Path: j.path, Seq: rec.Seq, Err: err}
	}
	line = append(line, '\n')

	err = j.write(line)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("creating journal directory", "dir", filepath.Dir(j.path))
		if mkErr := os.MkdirAll(filepath.Dir(j.path), 0o755); mkErr != nil {
			return 0, &Error{Op: "append", Path: j.path, Seq: rec.Seq, Err: mkErr}
		}
		err = j.write(line)
	}
	if err != nil {
		return 0, &Error{Op: "append", Path: j.path, Seq: rec.Seq, Err: err}
	}

	j.seq = rec.Seq
	return rec.Seq, nil
}

// write appends line to the open file handle, opening it if needed. On
// failure the file is truncated back to its size before the write and the
// handle is dropped so the next append reopens it.
func (j *File) write(line []byte) error {
	if j.f == nil {
		f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		j.f = f
	}

	info, err := j.f.Stat()
	if err != nil {
		return err
	}
	offset := info.Size()

	if err := j.writeLine(j.f, line); err != nil {
		j.rollback(offset)
		return err
	}
	return nil
}

// rollback discards anything written past offset. If that fails the journal
// refuses further appends.
func (j *File) rollback(offset int64) {
	err := j.f.Truncate(offset)
	if err == nil {
		err = j.f.Sync()
	}
	if err != nil {
		slog.Error("journal rollback failed", "path", j.path, "offset", offset, "error", err)
		j.broken = err
	}
	_ = j.f.Close()
	j.f = nil
}

// Replay decodes the file one record at a time.
func (j *File) Replay(ctx context.Context, fn ReplayFunc) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	n, err := j.scan(ctx, fn)
	if err != nil {
		return err
	}
	j.seq, j.seqSet = n, true
	return nil
}

// count returns the number of records on disk.
func (j *File) count() (int64, error) {
	return j.scan(context.Background(), nil)
}

// scan walks the file, calling fn (if non-nil) per record, and returns the
// number of records read. A missing file holds zero records.
func (j *File) scan(ctx context.Context, fn ReplayFunc) (int64, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("no journal to replay", "path", j.path)
		return 0, nil
	}
	if err != nil {
		return 0, &Error{Op: "replay", Path: j.path, Err: err}
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	var seq int64
	for {
		if err := ctx.Err(); err != nil {
			return seq, err
		}

		var rec Record
		err := dec.Decode(&rec)
		if err == io.EOF {
			return seq, nil
		}
		if err != nil {
			return seq, &Error{Op: "replay", Path: j.path, Seq: seq + 1, Err: corrupt("%v", err)}
		}

		seq++
		if err := validate(rec, seq); err != nil {
			return seq, &Error{Op: "replay", Path: j.path, Seq: seq, Err: err}
		}
		rec.Seq = seq

		if fn != nil {
			if err := fn(ctx, rec); err != nil {
				return seq, err
			}
		}
	}
}

// Close closes the append handle.
func (j *File) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}
