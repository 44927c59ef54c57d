package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_PrintsRecords(t *testing.T) {
	path := tempJournal(t)
	seedBlog(t, path, "a", "b")

	out, _, err := execute(t, "inspect", "--journal", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "add-post")
	assert.Contains(t, lines[0], `{"id":"a","subject":"s-a"}`)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[1]), "2 "))
}

func TestInspect_LimitAndFilter(t *testing.T) {
	path := tempJournal(t)
	seedBlog(t, path, "a", "b", "c")
	_, _, err := execute(t, "blog", "remove", "b", "--journal", path)
	require.NoError(t, err)

	out, _, err := execute(t, "inspect", "--journal", path, "--limit", "2", "--format", "json")
	require.NoError(t, err)
	resp := decodeResponse(t, out)
	assert.Len(t, resp.Data, 2)

	out, _, err = execute(t, "inspect", "--journal", path, "--command", "remove-post", "--format", "json")
	require.NoError(t, err)
	resp = decodeResponse(t, out)
	records := resp.Data.([]any)
	require.Len(t, records, 1)
	rec := records[0].(map[string]any)
	assert.Equal(t, float64(4), rec["seq"])
	assert.Equal(t, "b", rec["a"])
}

func TestInspect_Empty(t *testing.T) {
	out, _, err := execute(t, "inspect", "--journal", tempJournal(t))
	require.NoError(t, err)
	assert.Equal(t, "No records.\n", out)
}

func TestInspect_NegativeLimit(t *testing.T) {
	_, _, err := execute(t, "inspect", "--journal", tempJournal(t), "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
