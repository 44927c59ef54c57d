package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prevalence/internal/journal"
)

func testResult() *Result {
	r := NewResult()
	r.Journal = []journal.Record{
		{Seq: 1, Name: "add-post", Arg: json.RawMessage(`{"id":"a","subject":"A"}`)},
		{Seq: 2, Name: "add-post", Arg: json.RawMessage(`{"id":"b","subject":"B"}`)},
		{Seq: 3, Name: "remove-post", Arg: json.RawMessage(`"a"`)},
	}
	r.State = json.RawMessage(`{"posts":{"b":{"id":"b","subject":"B"}}}`)
	return r
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertJournalContains, Command: "add-post", Arg: map[string]any{"id": "b"}},
		{Type: AssertJournalContains, Command: "remove-post"},
		{Type: AssertJournalOrder, Commands: []string{"add-post", "remove-post"}},
		{Type: AssertJournalCount, Command: "add-post", Count: 2},
		{Type: AssertJournalCount, Command: "inc-counter", Count: 0},
		{Type: AssertFinalState, Expect: map[string]any{"posts": map[string]any{"b": map[string]any{"subject": "B"}}}},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		contains  string
	}{
		{"contains wrong arg", Assertion{Type: AssertJournalContains, Command: "add-post", Arg: map[string]any{"id": "z"}}, "not found in journal"},
		{"order reversed", Assertion{Type: AssertJournalOrder, Commands: []string{"remove-post", "add-post"}}, "no add-post after [remove-post]"},
		{"count", Assertion{Type: AssertJournalCount, Command: "remove-post", Count: 2}, "1 times"},
		{"final state", Assertion{Type: AssertFinalState, Expect: map[string]any{"posts": map[string]any{"a": map[string]any{}}}}, "final_state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(testResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.contains)
			assert.Contains(t, errs[0], "[3] remove-post")
		})
	}
}
