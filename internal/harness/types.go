package harness

import (
	"encoding/json"

	"github.com/roach88/prevalence/internal/journal"
)

// Trace event types.
const (
	EventExecute = "execute"
	EventQuery   = "query"
)

// TraceEvent records one step as the repository saw it. Arg and Result hold
// canonical JSON.
type TraceEvent struct {
	Seq    int64           `json:"seq"`
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Arg    json.RawMessage `json:"arg,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every setup and flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Journal holds the records written by the scenario.
	Journal []journal.Record `json:"journal"`

	// State is the canonical JSON of the model after the flow.
	State json.RawMessage `json:"state"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Journal: []journal.Record{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends ev with the next sequence number.
func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
