package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// replayPageSize bounds how many stream entries are fetched per XRANGE call.
const replayPageSize = 256

// Redis is a journal stored in a Redis stream, one entry per record.
//
// Durability follows the server's persistence settings; run Redis with
// appendonly yes and appendfsync always for the same guarantee as the file
// journal.
type Redis struct {
	client *redis.Client
	stream string

	mu     sync.Mutex
	seq    int64
	seqSet bool
}

var _ Journal = (*Redis)(nil)

// OpenRedis connects to url and journals into stream.
func OpenRedis(ctx context.Context, url, stream string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, &Error{Op: "open", Path: stream, Err: fmt.Errorf("parse redis URL: %w", err)}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &Error{Op: "open", Path: stream, Err: fmt.Errorf("redis ping failed: %w", err)}
	}

	return NewRedis(client, stream), nil
}

// NewRedis wraps an existing client. Close closes the client.
func NewRedis(client *redis.Client, stream string) *Redis {
	return &Redis{client: client, stream: stream}
}

// Append adds rec to the stream.
func (j *Redis) Append(ctx context.Context, rec Record) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.seqSet {
		n, err := j.client.XLen(ctx, j.stream).Result()
		if err != nil {
			return 0, &Error{Op: "append", Path: j.stream, Err: err}
		}
		j.seq, j.seqSet = n, true
	}

	arg := string(rec.Arg)
	if arg == "" {
		arg = "null"
	}
	seq := j.seq + 1

	err := j.client.XAdd(ctx, &redis.XAddArgs{
		Stream: j.stream,
		Values: map[string]any{
			"seq": seq,
			"id":  rec.ID,
			"t":   rec.Timestamp.UTC().Format(time.RFC3339Nano),
			"n":   rec.Name,
			"a":   arg,
		},
	}).Err()
	if err != nil {
		return 0, &Error{Op: "append", Path: j.stream, Seq: seq, Err: err}
	}

	j.seq = seq
	return seq, nil
}

// Replay pages through the stream in entry order.
func (j *Redis) Replay(ctx context.Context, fn ReplayFunc) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := "-"
	var seq int64
	for {
		msgs, err := j.client.XRangeN(ctx, j.stream, start, "+", replayPageSize).Result()
		if err != nil {
			return &Error{Op: "replay", Path: j.stream, Seq: seq + 1, Err: err}
		}

		for _, msg := range msgs {
			seq++
			rec, err := decodeStreamEntry(msg.Values)
			if err != nil {
				return &Error{Op: "replay", Path: j.stream, Seq: seq, Err: err}
			}
			if err := validate(rec, seq); err != nil {
				return &Error{Op: "replay", Path: j.stream, Seq: seq, Err: err}
			}
			rec.Seq = seq

			if err := fn(ctx, rec); err != nil {
				return err
			}
		}

		if len(msgs) < replayPageSize {
			break
		}
		start = "(" + msgs[len(msgs)-1].ID
	}

	j.seq, j.seqSet = seq, true
	return nil
}

func decodeStreamEntry(values map[string]any) (Record, error) {
	field := func(name string) (string, error) {
		v, ok := values[name]
		if !ok {
			return "", corrupt("missing field %q", name)
		}
		s, ok := v.(string)
		if !ok {
			return "", corrupt("field %q has type %T", name, v)
		}
		return s, nil
	}

	var rec Record

	seqText, err := field("seq")
	if err != nil {
		return rec, err
	}
	if rec.Seq, err = strconv.ParseInt(seqText, 10, 64); err != nil {
		return rec, corrupt("seq: %v", err)
	}

	if rec.ID, err = field("id"); err != nil {
		return rec, err
	}

	ts, err := field("t")
	if err != nil {
		return rec, err
	}
	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return rec, corrupt("timestamp: %v", err)
	}

	if rec.Name, err = field("n"); err != nil {
		return rec, err
	}

	arg, err := field("a")
	if err != nil {
		return rec, err
	}
	if !json.Valid([]byte(arg)) {
		return rec, corrupt("argument is not valid JSON")
	}
	rec.Arg = json.RawMessage(arg)

	return rec, nil
}

// Close closes the Redis client.
func (j *Redis) Close() error {
	return j.client.Close()
}
