// Package lock provides the readers/writer gate that serializes access to a
// repository's model.
//
// RWLock is built on a weighted semaphore: a shared holder takes one unit, an
// exclusive holder takes the whole capacity. The semaphore queues waiters in
// FIFO order and never lets a later, smaller request jump a blocked larger
// one, so a waiting writer holds back readers that arrive after it. Writers
// therefore cannot be starved by a stream of readers.
package lock

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxShared is the shared holder capacity used when NewRWLock gets a
// non-positive value.
const DefaultMaxShared int64 = 1 << 20

// Locker is the scoped acquire/release contract used by the repository.
//
// fn runs while the lock is held; the lock is released when fn returns,
// fails or panics, and fn's error is returned to the caller. ctx only bounds
// the wait for acquisition.
type Locker interface {
	Shared(ctx context.Context, fn func(context.Context) error) error
	Exclusive(ctx context.Context, fn func(context.Context) error) error
}

// Stats is a point-in-time view of the lock holders.
type Stats struct {
	Shared    int64
	Exclusive bool
}

// RWLock is a FIFO-fair readers/writer lock.
//
// Thread-safety: all methods are safe for concurrent use.
type RWLock struct {
	sem       *semaphore.Weighted
	capacity  int64
	shared    atomic.Int64
	exclusive atomic.Bool
}

var _ Locker = (*RWLock)(nil)

// NewRWLock creates a lock admitting up to maxShared concurrent shared holders.
func NewRWLock(maxShared int64) *RWLock {
	if maxShared <= 0 {
		maxShared = DefaultMaxShared
	}
	return &RWLock{
		sem:      semaphore.NewWeighted(maxShared),
		capacity: maxShared,
	}
}

// Shared runs fn alongside any other shared holders.
func (l *RWLock) Shared(ctx context.Context, fn func(context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire shared lock: %w", err)
	}
	l.shared.Add(1)
	defer func() {
		l.shared.Add(-1)
		l.sem.Release(1)
	}()

	return fn(ctx)
}

// Exclusive runs fn with no other holder of either kind.
func (l *RWLock) Exclusive(ctx context.Context, fn func(context.Context) error) error {
	if err := l.sem.Acquire(ctx, l.capacity); err != nil {
		return fmt.Errorf("acquire exclusive lock: %w", err)
	}
	l.exclusive.Store(true)
	defer func() {
		l.exclusive.Store(false)
		l.sem.Release(l.capacity)
	}()

	return fn(ctx)
}

// Stats reports the current holders.
func (l *RWLock) Stats() Stats {
	return Stats{
		Shared:    l.shared.Load(),
		Exclusive: l.exclusive.Load(),
	}
}

// WithShared runs fn under l's shared lock and returns its value.
func WithShared[T any](ctx context.Context, l Locker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Shared(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// WithExclusive runs fn under l's exclusive lock and returns its value.
func WithExclusive[T any](ctx context.Context, l Locker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Exclusive(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
