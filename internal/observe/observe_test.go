package observe

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []string
}

func (r *recorder) Initialized(int, time.Duration)        { r.events = append(r.events, "init") }
func (r *recorder) Executed(string, json.RawMessage, any) { r.events = append(r.events, "exec") }
func (r *recorder) Error(op string, _ error)              { r.events = append(r.events, "error:"+op) }

func TestMulti_FansOutInOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b, Nop{}}

	m.Initialized(3, time.Millisecond)
	m.Executed("inc", json.RawMessage(`1`), 2)
	m.Error(OpExecute, errors.New("boom"))

	want := []string{"init", "exec", "error:execute"}
	assert.Equal(t, want, a.events)
	assert.Equal(t, want, b.events)
}

func TestLogger_WritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Initialized(10, 0)
	l.Executed("add-post", json.RawMessage(`{"id":"post#1"}`), nil)
	l.Error(OpInit, errors.New("journal gone"))

	out := buf.String()
	assert.Contains(t, out, "initialization done")
	assert.Contains(t, out, "replayed=10")
	assert.Contains(t, out, "command=add-post")
	assert.Contains(t, out, "op=init")
	assert.Contains(t, out, "journal gone")
}
