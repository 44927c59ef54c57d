package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/prevalence/internal/canonical"
	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and record IDs.
type Harness struct {
	session session
	clock   *testutil.DeterministicClock
	ids     *testutil.SequentialIDs
	logger  *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh journal in a temporary directory.
//
// Execution flow:
// 1. Open the journal and a repository over the scenario's model
// 2. Execute setup steps
// 3. Execute flow steps with expect validation
// 4. Restart from the journal and compare the replayed model
// 5. Evaluate assertions
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	m, ok := Models[scenario.Model]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", scenario.Model)
	}

	dir, err := os.MkdirTemp("", "prevalence-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	jcfg := journalConfig(scenario.Driver, dir)
	j, err := journal.Open(ctx, jcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	closeJournal := sync.OnceValue(j.Close)
	defer closeJournal()

	h := &Harness{
		clock:  testutil.NewDeterministicClock(),
		ids:    testutil.NewSequentialIDs(""),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	h.session, err = m.open(j, h.options())
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	result := NewResult()
	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	snapshot, err := h.session.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot model: %w", err)
	}
	if result.State, err = canonical.Marshal(snapshot); err != nil {
		return nil, fmt.Errorf("failed to encode model: %w", err)
	}

	if err := j.Replay(ctx, func(_ context.Context, rec journal.Record) error {
		result.Journal = append(result.Journal, rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if err := closeJournal(); err != nil {
		return nil, fmt.Errorf("failed to close journal: %w", err)
	}

	if err := h.verifyReplay(ctx, m, jcfg, scenario.ReplayError, result); err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func journalConfig(driver, dir string) journal.Config {
	if driver == journal.DriverSQLite {
		return journal.Config{Driver: driver, Path: filepath.Join(dir, "journal.db")}
	}
	return journal.Config{Driver: journal.DriverFile, Path: filepath.Join(dir, "journal.jsonl")}
}

func (h *Harness) options() sessionOptions {
	return sessionOptions{
		clock:  h.clock.Now,
		newID:  h.ids.Next,
		logger: h.logger,
	}
}

// executeSetup runs all setup steps. Setup commands must succeed.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		ev, _, err := h.execute(ctx, step)
		if err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Execute, err)
		}
		result.addTrace(ev)

		h.logger.Info("setup step completed", "step", i, "command", step.Execute)
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		var (
			ev     TraceEvent
			out    any
			runErr error
			err    error
		)
		if step.Execute != "" {
			ev, out, runErr = h.execute(ctx, step)
		} else {
			ev, out, runErr = h.query(ctx, step)
		}
		if runErr != nil {
			ev.Error = runErr.Error()
		}
		result.addTrace(ev)

		if err = checkExpect(step.Expect, out, runErr); err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, ev.Name, err))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"type", ev.Type,
			"name", ev.Name,
			"error", ev.Error,
		)
	}
	return nil
}

// execute runs one command. The returned error is the repository's.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, any, error) {
	ev := TraceEvent{Type: EventExecute, Name: step.Execute}
	if step.Arg != nil {
		arg, err := canonical.Marshal(step.Arg)
		if err != nil {
			return ev, nil, err
		}
		ev.Arg = arg
	}

	out, err := h.session.Execute(ctx, step.Execute, step.Arg)
	if err != nil {
		return ev, nil, err
	}
	if ev.Result, err = canonical.Marshal(out); err != nil {
		return ev, nil, err
	}
	return ev, out, nil
}

func (h *Harness) query(ctx context.Context, step Step) (TraceEvent, any, error) {
	ev := TraceEvent{Type: EventQuery, Name: step.Query}

	out, err := h.session.Query(ctx, step.Query)
	if err != nil {
		return ev, nil, err
	}
	if ev.Result, err = canonical.Marshal(out); err != nil {
		return ev, nil, err
	}
	return ev, out, nil
}

// checkExpect compares a step outcome with its expectation. A nil
// expectation requires success.
func checkExpect(expect *ExpectClause, out any, err error) error {
	switch {
	case expect == nil || expect.Error == "":
		if err != nil {
			return fmt.Errorf("unexpected error: %w", err)
		}
	case err == nil:
		return fmt.Errorf("expected error containing %q, got success", expect.Error)
	case !strings.Contains(err.Error(), expect.Error):
		return fmt.Errorf("expected error containing %q, got %q", expect.Error, err.Error())
	default:
		return nil
	}

	if expect == nil || expect.Result == nil {
		return nil
	}
	ok, err := Matches(out, expect.Result)
	if err != nil {
		return err
	}
	if !ok {
		got, _ := canonical.Marshal(out)
		want, _ := canonical.Marshal(expect.Result)
		return fmt.Errorf("result mismatch: expected %s, got %s", want, got)
	}
	return nil
}

// verifyReplay restarts the model from the journal on a fresh journal
// instance and compares it with the state at the end of the flow.
func (h *Harness) verifyReplay(ctx context.Context, m opener, cfg journal.Config, wantErr string, result *Result) error {
	j, err := journal.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to reopen journal: %w", err)
	}
	defer j.Close()

	s, err := m.open(j, h.options())
	if err != nil {
		return fmt.Errorf("failed to reopen repository: %w", err)
	}

	snapshot, replayErr := s.Snapshot(ctx)
	switch {
	case wantErr != "" && replayErr == nil:
		result.AddError(fmt.Sprintf("replay: expected error containing %q, got success", wantErr))
	case wantErr != "" && !strings.Contains(replayErr.Error(), wantErr):
		result.AddError(fmt.Sprintf("replay: expected error containing %q, got %q", wantErr, replayErr.Error()))
	case wantErr != "":
		h.logger.Info("replay failed as expected", "error", replayErr)
	case replayErr != nil:
		result.AddError(fmt.Sprintf("replay: %v", replayErr))
	default:
		replayed, err := canonical.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("failed to encode replayed model: %w", err)
		}
		if !bytes.Equal(replayed, result.State) {
			result.AddError(fmt.Sprintf("replay diverged:\n  live:     %s\n  replayed: %s", result.State, replayed))
		}
	}
	return nil
}

// toValue converts v to its generic JSON form (maps, slices, float64...).
func toValue(v any) (any, error) {
	data, err := canonical.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
