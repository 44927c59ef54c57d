// Package journaltest provides in-memory journals for tests, including
// fault injection and call counting.
package journaltest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/prevalence/internal/journal"
)

// Memory is an in-memory journal.
//
// Setting AppendErr or ReplayErr makes the corresponding operation fail.
// ReplayDelay stalls Replay before the first record, which lets tests pile up
// concurrent callers behind a single initialization.
type Memory struct {
	AppendErr   error
	ReplayErr   error
	ReplayDelay time.Duration

	appendCalls atomic.Int64
	replayCalls atomic.Int64

	mu      sync.Mutex
	records []journal.Record
}

var _ journal.Journal = (*Memory)(nil)

// NewMemory returns a journal preloaded with records.
func NewMemory(records ...journal.Record) *Memory {
	m := &Memory{}
	for _, rec := range records {
		m.records = append(m.records, rec)
		m.records[len(m.records)-1].Seq = int64(len(m.records))
	}
	return m
}

// Append stores a copy of rec.
func (m *Memory) Append(ctx context.Context, rec journal.Record) (int64, error) {
	m.appendCalls.Add(1)
	if m.AppendErr != nil {
		return 0, m.AppendErr
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Arg = append([]byte(nil), rec.Arg...)
	rec.Seq = int64(len(m.records) + 1)
	m.records = append(m.records, rec)
	return rec.Seq, nil
}

// Replay walks a snapshot of the stored records.
func (m *Memory) Replay(ctx context.Context, fn journal.ReplayFunc) error {
	m.replayCalls.Add(1)
	if m.ReplayDelay > 0 {
		time.Sleep(m.ReplayDelay)
	}
	if m.ReplayErr != nil {
		return m.ReplayErr
	}

	for _, rec := range m.Records() {
		if err := fn(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Records returns a copy of the stored records.
func (m *Memory) Records() []journal.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]journal.Record(nil), m.records...)
}

// AppendCalls returns how many times Append was called.
func (m *Memory) AppendCalls() int64 { return m.appendCalls.Load() }

// ReplayCalls returns how many times Replay was called.
func (m *Memory) ReplayCalls() int64 { return m.replayCalls.Load() }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
