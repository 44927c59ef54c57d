package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterScenario = `
name: counter_twice
description: "two increments"
model: counter
flow:
  - execute: inc-counter
  - execute: inc-counter
    expect:
      result: 2
assertions:
  - type: final_state
    expect: { value: 2 }
`

const failingScenario = `
name: counter_wrong
description: "wrong expectation"
model: counter
flow:
  - execute: inc-counter
    expect:
      result: 5
assertions:
  - type: journal_count
    command: inc-counter
    count: 1
`

func writeScenario(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
}

func TestTestCommand_MissingDirectory(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_PassingAndFailing(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter_twice", counterScenario)
	writeScenario(t, dir, "counter_wrong", failingScenario)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "PASS counter_twice")
	assert.Contains(t, out, "FAIL counter_wrong")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")

	out, _, err = execute(t, "test", dir, "--filter", "counter_tw*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommand_GoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "counter_twice", counterScenario)

	_, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "counter_twice.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"counter_twice"`)
	assert.Contains(t, string(golden), `"state":{"value":2}`)

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "counter_twice.golden"), []byte("{}\n"), 0o644))
	out, _, err := execute(t, "test", dir, "--format", "json")
	require.Error(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
}
