package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtEpoch(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Second), c.Now())
	assert.Equal(t, int64(2), c.Ticks())
}

func TestDeterministicClock_Reset(t *testing.T) {
	c := NewDeterministicClockAt(time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	first := c.Now()
	c.Now()
	c.Reset()
	assert.Equal(t, first, c.Now())
}

func TestDeterministicClock_ConcurrentCallsAreUnique(t *testing.T) {
	c := NewDeterministicClock()
	const n = 100

	var (
		mu   sync.Mutex
		seen = make(map[time.Time]bool)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := c.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	assert.Equal(t, int64(n), c.Ticks())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "rec-0001", g.Next())
	assert.Equal(t, "rec-0002", g.Next())

	g = NewSequentialIDs("blog")
	assert.Equal(t, "blog-0001", g.Next())
}
