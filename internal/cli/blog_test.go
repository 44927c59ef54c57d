package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlog_AddAndList(t *testing.T) {
	path := tempJournal(t)

	out, _, err := execute(t, "blog", "add", "--journal", path, "--id", "post#2", "--subject", "Ipsum")
	require.NoError(t, err)
	assert.Equal(t, "post#2: Ipsum\n", out)

	_, _, err = execute(t, "blog", "add", "--journal", path, "--id", "post#1", "--subject", "Lorem")
	require.NoError(t, err)

	out, _, err = execute(t, "blog", "list", "--journal", path)
	require.NoError(t, err)
	assert.Equal(t, "post#1: Lorem\npost#2: Ipsum\n", out)
}

func TestBlog_ListJSON(t *testing.T) {
	path := tempJournal(t)
	_, _, err := execute(t, "blog", "add", "--journal", path, "--id", "a", "--subject", "A", "--body", "text")
	require.NoError(t, err)

	out, _, err := execute(t, "blog", "list", "--journal", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []any{map[string]any{"id": "a", "subject": "A", "body": "text"}}, resp.Data)
}

func TestBlog_EmptyList(t *testing.T) {
	out, _, err := execute(t, "blog", "list", "--journal", tempJournal(t))
	require.NoError(t, err)
	assert.Equal(t, "No posts.\n", out)
}

func TestBlog_Remove(t *testing.T) {
	path := tempJournal(t)
	_, _, err := execute(t, "blog", "add", "--journal", path, "--id", "a", "--subject", "A")
	require.NoError(t, err)

	out, _, err := execute(t, "blog", "remove", "a", "--journal", path)
	require.NoError(t, err)
	assert.Equal(t, "a: removed\n", out)

	out, _, err = execute(t, "blog", "remove", "a", "--journal", path)
	require.NoError(t, err)
	assert.Equal(t, "a: not found\n", out)
}

func TestBlog_AddRequiresID(t *testing.T) {
	_, _, err := execute(t, "blog", "add", "--journal", tempJournal(t), "--subject", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestBlog_SQLiteDriver(t *testing.T) {
	path := tempJournal(t) + ".db"

	_, _, err := execute(t, "blog", "add", "--driver", "sqlite", "--journal", path, "--id", "a", "--subject", "A")
	require.NoError(t, err)

	out, _, err := execute(t, "blog", "list", "--driver", "sqlite", "--journal", path)
	require.NoError(t, err)
	assert.Equal(t, "a: A\n", out)
}
