package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gauge tracks the number of concurrently active bodies and the peak.
type gauge struct {
	active atomic.Int64
	peak   atomic.Int64
}

func (g *gauge) enter() {
	n := g.active.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (g *gauge) leave() { g.active.Add(-1) }

func TestRWLock_SharedHoldersOverlap(t *testing.T) {
	l := NewRWLock(0)
	var g gauge
	var wg sync.WaitGroup

	const n = 10
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Shared(context.Background(), func(context.Context) error {
				g.enter()
				defer g.leave()
				time.Sleep(30 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), g.active.Load())
	assert.Equal(t, int64(n), g.peak.Load())
}

func TestRWLock_ExclusiveHoldersNeverOverlap(t *testing.T) {
	l := NewRWLock(0)
	var g gauge
	var wg sync.WaitGroup
	counter := 0

	const n = 10
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Exclusive(context.Background(), func(context.Context) error {
				g.enter()
				defer g.leave()
				time.Sleep(5 * time.Millisecond)
				counter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), g.peak.Load())
	assert.Equal(t, n, counter)
}

func TestRWLock_ExclusiveExcludesShared(t *testing.T) {
	l := NewRWLock(0)
	entered := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = l.Exclusive(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	readerDone := make(chan struct{})
	go func() {
		_ = l.Shared(context.Background(), func(context.Context) error { return nil })
		close(readerDone)
	}()

	select {
	case <-readerDone:
		t.Fatal("shared holder ran while exclusive lock was held")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-readerDone:
	case <-time.After(time.Second):
		t.Fatal("shared holder never ran after exclusive release")
	}
}

func TestRWLock_WriterNotStarvedByReaders(t *testing.T) {
	l := NewRWLock(0)
	stop := make(chan struct{})
	var readers sync.WaitGroup

	// keep a continuous stream of overlapping readers
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = l.Shared(context.Background(), func(context.Context) error {
					time.Sleep(2 * time.Millisecond)
					return nil
				})
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	wrote := make(chan struct{})
	go func() {
		_ = l.Exclusive(context.Background(), func(context.Context) error { return nil })
		close(wrote)
	}()

	select {
	case <-wrote:
	case <-time.After(time.Second):
		t.Fatal("exclusive request starved by readers")
	}
	close(stop)
	readers.Wait()
}

func TestRWLock_ReleasesOnError(t *testing.T) {
	l := NewRWLock(0)
	boom := errors.New("boom")

	err := l.Exclusive(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = l.Shared(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	// lock must be free again
	err = l.Exclusive(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, Stats{}, l.Stats())
}

func TestRWLock_ReleasesOnPanic(t *testing.T) {
	l := NewRWLock(0)

	assert.Panics(t, func() {
		_ = l.Exclusive(context.Background(), func(context.Context) error { panic("boom") })
	})

	err := l.Exclusive(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRWLock_AcquireHonorsContext(t *testing.T) {
	l := NewRWLock(0)
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	go func() {
		_ = l.Exclusive(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := false
	err := l.Shared(ctx, func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)
}

func TestWithShared_ReturnsValue(t *testing.T) {
	l := NewRWLock(0)

	v, err := WithShared(context.Background(), l, func(context.Context) (int, error) {
		assert.Equal(t, int64(1), l.Stats().Shared)
		return 123, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 123, v)

	s, err := WithExclusive(context.Background(), l, func(context.Context) (string, error) {
		assert.True(t, l.Stats().Exclusive)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}
