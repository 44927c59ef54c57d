package marshal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	Tags    []string `json:"tags"`
}

type ledger struct {
	entries []int
}

func (l *ledger) MarshalCopy() (any, error) {
	return &ledger{entries: append([]int(nil), l.entries...)}, nil
}

type node struct {
	Next *node `json:"next"`
}

func TestCopy_ScalarsPassThrough(t *testing.T) {
	type celsius float64

	for _, v := range []any{nil, true, 123, int64(-7), uint8(3), 1.5, "hello", celsius(21.5)} {
		out, err := Copy(v)
		require.NoError(t, err)
		assert.Equal(t, v, out)
	}
}

func TestCopy_MapIsIsolated(t *testing.T) {
	model := map[string]any{"a": 123}

	out, err := Copy(model)
	require.NoError(t, err)

	copied := out.(map[string]any)
	assert.Equal(t, 123, copied["a"])

	copied["a"] = 456
	assert.Equal(t, 123, model["a"], "mutating the copy must not touch the source")
}

func TestCopy_InterfaceValuesKeepTheirTypes(t *testing.T) {
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	src := map[string]any{
		"int":    123,
		"big":    int64(1<<53 + 1),
		"uint":   uint8(7),
		"when":   when,
		"post":   post{ID: "p1", Tags: []string{"a"}},
		"nested": []any{int32(-1), map[string]any{"x": 2.5}},
	}

	out, err := Copy(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	copied := out.(map[string]any)
	assert.Equal(t, int64(9007199254740993), copied["big"])
	assert.True(t, when.Equal(copied["when"].(time.Time)))

	copied["nested"].([]any)[1].(map[string]any)["x"] = 0.0
	copied["post"].(post).Tags[0] = "z"
	assert.Equal(t, 2.5, src["nested"].([]any)[1].(map[string]any)["x"])
	assert.Equal(t, "a", src["post"].(post).Tags[0])
}

func TestCopy_StructKeepsDynamicType(t *testing.T) {
	src := post{ID: "post#1", Subject: "Lorem", Tags: []string{"x"}}

	out, err := Copy(src)
	require.NoError(t, err)

	copied, ok := out.(post)
	require.True(t, ok, "copy should keep type post, got %T", out)
	assert.Equal(t, src, copied)

	copied.Tags[0] = "y"
	assert.Equal(t, "x", src.Tags[0])
}

func TestCopy_PointerIsFresh(t *testing.T) {
	src := &post{ID: "post#2"}

	out, err := Copy(src)
	require.NoError(t, err)

	copied := out.(*post)
	assert.NotSame(t, src, copied)
	copied.ID = "changed"
	assert.Equal(t, "post#2", src.ID)
}

func TestCopy_UsesCopier(t *testing.T) {
	src := &ledger{entries: []int{1, 2}}

	out, err := Copy(src)
	require.NoError(t, err)

	copied := out.(*ledger)
	assert.Equal(t, []int{1, 2}, copied.entries, "unexported state survives a custom copy")
	copied.entries[0] = 99
	assert.Equal(t, 1, src.entries[0])
}

func TestCopy_RejectsNonData(t *testing.T) {
	_, err := Copy(map[string]any{"fn": func() {}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotCopyable))

	var merr *Error
	require.ErrorAs(t, err, &merr)
}

func TestCopy_RejectsCycles(t *testing.T) {
	n := &node{}
	n.Next = n

	_, err := Copy(n)
	assert.ErrorIs(t, err, ErrNotCopyable)
}

func TestCopyAs(t *testing.T) {
	src := []post{{ID: "a"}, {ID: "b"}}

	out, err := CopyAs(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	out[0].ID = "z"
	assert.Equal(t, "a", src[0].ID)
}
