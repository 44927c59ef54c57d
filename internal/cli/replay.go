package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/repository"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
}

// CommandCount is the number of records for one command name.
type CommandCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReplayResult holds the replay statistics.
type ReplayResult struct {
	Records  int            `json:"records"`
	Commands []CommandCount `json:"commands"`
	First    *time.Time     `json:"first,omitempty"`
	Last     *time.Time     `json:"last,omitempty"`
	Took     string         `json:"took"`
}

// tally is the model the replay command rebuilds: a count per command.
type tally struct {
	Counts map[string]int
}

// timedJournal records the first and last timestamps it replays.
type timedJournal struct {
	journal.Journal
	first, last time.Time
}

func (j *timedJournal) Replay(ctx context.Context, fn journal.ReplayFunc) error {
	return j.Journal.Replay(ctx, func(ctx context.Context, rec journal.Record) error {
		if j.first.IsZero() {
			j.first = rec.Timestamp
		}
		j.last = rec.Timestamp
		return fn(ctx, rec)
	})
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and report statistics",
		Long: `Replay every record of the journal through a repository that accepts
any command, and report how many records each command has.

A journal that replays cleanly here can be read by an application; a
corrupt or unreadable record stops the replay and is reported with its
sequence number.

Exit codes:
  0 - Journal replayed
  1 - Replay failed (corrupt record, unreadable journal)
  2 - Command error (journal cannot be opened, etc.)

Examples:
  prevalence replay --journal ./prevalence.jsonl
  prevalence replay --driver sqlite --journal ./prevalence.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := opts.openJournal(ctx)
	if err != nil {
		return err
	}
	defer j.Close()
	timed := &timedJournal{Journal: j}

	repo, err := repository.New(repository.Config[*tally]{
		Model:    &tally{Counts: make(map[string]int)},
		Journal:  timed,
		Observer: opts.observer(),
		Logger:   opts.logger(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create repository", err)
	}
	repo.Register(repository.Wildcard, func(_ context.Context, t *tally, _ repository.Arg, inv repository.Invocation[*tally]) (any, error) {
		t.Counts[inv.Name]++
		return nil, nil
	})

	start := time.Now()
	counts, err := repository.QueryAs(ctx, repo, func(_ context.Context, t *tally) (map[string]int, error) {
		return t.Counts, nil
	})
	if err != nil {
		return outputReplayError(cmd, opts, err)
	}

	result := ReplayResult{
		Commands: make([]CommandCount, 0, len(counts)),
		Took:     time.Since(start).Round(time.Millisecond).String(),
	}
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		result.Commands = append(result.Commands, CommandCount{Name: name, Count: counts[name]})
		result.Records += counts[name]
	}
	if !timed.first.IsZero() {
		result.First, result.Last = &timed.first, &timed.last
	}

	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: result})
	}
	return outputReplayText(cmd, result)
}

// outputReplayError reports a failed replay. Replay failures exit with
// ExitFailure.
func outputReplayError(cmd *cobra.Command, opts *ReplayOptions, err error) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	details := map[string]any{"journal": opts.Journal}
	var ie *repository.InitError
	if errors.As(err, &ie) {
		details["replayed"] = ie.Replayed
		if ie.Seq > 0 {
			details["seq"] = ie.Seq
		}
	}
	if werr := f.Error(CodeReplay, err.Error(), details); werr != nil {
		return werr
	}
	return WrapExitError(ExitFailure, "replay failed", err)
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.Records == 0 {
		fmt.Fprintln(w, "Journal is empty.")
		return nil
	}

	fmt.Fprintf(w, "Replayed %d record(s) in %s\n", result.Records, result.Took)
	fmt.Fprintf(w, "  First: %s\n", result.First.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "  Last:  %s\n", result.Last.Format(time.RFC3339Nano))
	fmt.Fprintln(w)
	for _, c := range result.Commands {
		fmt.Fprintf(w, "  %-24s %d\n", c.Name, c.Count)
	}
	return nil
}
