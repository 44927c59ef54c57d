package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "blog_posts.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "blog_posts", s.Name)
	assert.Equal(t, "blog", s.Model)
	require.Len(t, s.Setup, 1)
	require.Len(t, s.Flow, 3)
	assert.Equal(t, "add-post", s.Flow[0].Execute)
	assert.Equal(t, "posts", s.Flow[2].Query)
	assert.Len(t, s.Assertions, 4)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	content := `
name: typo
description: "typo in assertions key"
model: counter
flow:
  - execute: inc-counter
assertion:
  - type: journal_count
    command: inc-counter
    count: 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	const head = "name: x\ndescription: d\n"
	const assertions = "assertions:\n  - type: journal_count\n    command: c\n"

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nmodel: blog\nflow:\n  - execute: a\n" + assertions,
			wantErr: "name is required",
		},
		{
			name:    "missing model",
			yaml:    head + "flow:\n  - execute: a\n" + assertions,
			wantErr: "model is required",
		},
		{
			name:    "unknown model",
			yaml:    head + "model: shop\nflow:\n  - execute: a\n" + assertions,
			wantErr: `unknown model "shop"`,
		},
		{
			name:    "unsupported driver",
			yaml:    head + "model: blog\ndriver: redis\nflow:\n  - execute: a\n" + assertions,
			wantErr: "unsupported driver",
		},
		{
			name:    "empty flow",
			yaml:    head + "model: blog\n" + assertions,
			wantErr: "flow list is required",
		},
		{
			name:    "step without action",
			yaml:    head + "model: blog\nflow:\n  - arg: 1\n" + assertions,
			wantErr: "one of execute or query is required",
		},
		{
			name:    "step with both",
			yaml:    head + "model: blog\nflow:\n  - execute: a\n    query: posts\n" + assertions,
			wantErr: "mutually exclusive",
		},
		{
			name:    "query with arg",
			yaml:    head + "model: blog\nflow:\n  - query: posts\n    arg: 1\n" + assertions,
			wantErr: "queries take no arg",
		},
		{
			name:    "setup query",
			yaml:    head + "model: blog\nsetup:\n  - query: posts\nflow:\n  - execute: a\n" + assertions,
			wantErr: "setup[0]",
		},
		{
			name:    "unknown assertion",
			yaml:    head + "model: blog\nflow:\n  - execute: a\nassertions:\n  - type: trace_magic\n",
			wantErr: `unknown assertion type "trace_magic"`,
		},
		{
			name:    "final state without expect",
			yaml:    head + "model: blog\nflow:\n  - execute: a\nassertions:\n  - type: final_state\n",
			wantErr: "expect is required for final_state",
		},
		{
			name:    "order without commands",
			yaml:    head + "model: blog\nflow:\n  - execute: a\nassertions:\n  - type: journal_order\n",
			wantErr: "commands list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
