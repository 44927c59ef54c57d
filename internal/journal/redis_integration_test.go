//go:build integration

package journal

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisJournal(t *testing.T, stream string) *Redis {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())

	j := NewRedis(client, stream)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRedis_AppendThenReplay(t *testing.T) {
	j := newRedisJournal(t, "test:journal")
	ctx := context.Background()

	assert.Empty(t, collect(t, j), "missing stream replays as empty")

	// more than one page
	for i := 0; i < replayPageSize+3; i++ {
		seq, err := j.Append(ctx, testRecord("inc", `1`))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}

	got := collect(t, j)
	require.Len(t, got, replayPageSize+3)
	for i, rec := range got {
		assert.Equal(t, int64(i+1), rec.Seq)
		assert.Equal(t, "inc", rec.Name)
		assert.Equal(t, "1", string(rec.Arg))
	}
}

func TestRedis_CorruptEntryFailsReplay(t *testing.T) {
	j := newRedisJournal(t, "test:corrupt")
	ctx := context.Background()

	err := j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		Values: map[string]any{"seq": 1, "n": "inc"},
	}).Err()
	require.NoError(t, err)

	err = j.Replay(ctx, func(context.Context, Record) error { return nil })
	assert.True(t, IsCorrupt(err))
}
