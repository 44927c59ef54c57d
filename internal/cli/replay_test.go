package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBlog(t *testing.T, path string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, _, err := execute(t, "blog", "add", "--journal", path, "--id", id, "--subject", "s-"+id)
		require.NoError(t, err)
	}
}

func TestReplay_EmptyJournal(t *testing.T) {
	out, _, err := execute(t, "replay", "--journal", tempJournal(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Journal is empty.")
}

func TestReplay_CountsCommands(t *testing.T) {
	path := tempJournal(t)
	seedBlog(t, path, "a", "b")
	_, _, err := execute(t, "blog", "remove", "a", "--journal", path)
	require.NoError(t, err)

	out, _, err := execute(t, "replay", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Replayed 3 record(s)")
	assert.Regexp(t, `add-post\s+2`, out)
	assert.Regexp(t, `remove-post\s+1`, out)
}

func TestReplay_JSON(t *testing.T) {
	path := tempJournal(t)
	seedBlog(t, path, "a", "b")

	out, _, err := execute(t, "replay", "--journal", path, "--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(2), data["records"])
	assert.Equal(t, []any{map[string]any{"name": "add-post", "count": float64(2)}}, data["commands"])
	assert.NotEmpty(t, data["first"])
	assert.NotEmpty(t, data["last"])
}

func TestReplay_CorruptJournal(t *testing.T) {
	path := tempJournal(t)
	seedBlog(t, path, "a")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out, _, err := execute(t, "replay", "--journal", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_REPLAY]")

	out, _, err = execute(t, "replay", "--journal", path, "--format", "json")
	require.Error(t, err)
	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeReplay, resp.Error.Code)
	assert.Equal(t, float64(1), resp.Error.Details.(map[string]any)["replayed"])
}

func TestReplay_RejectsArguments(t *testing.T) {
	_, _, err := execute(t, "replay", "extra", "--journal", filepath.Join(t.TempDir(), "j"))
	require.Error(t, err)
}
