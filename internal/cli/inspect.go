package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prevalence/internal/journal"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Limit   int    // 0 = all records
	Command string // optional - records of this command only
}

// errLimitReached stops the journal scan early.
var errLimitReached = errors.New("limit reached")

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print journal records",
		Long: `Print the records of the journal in order, without applying them.

Examples:
  prevalence inspect --journal ./prevalence.jsonl
  prevalence inspect --limit 10 --command add-post
  prevalence inspect --driver redis --redis-url redis://localhost:6379/0 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of records to print (0 = all)")
	cmd.Flags().StringVar(&opts.Command, "command", "", "only print records of this command")

	return cmd
}

func runInspect(ctx context.Context, opts *InspectOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "limit must be non-negative")
	}

	j, err := opts.openJournal(ctx)
	if err != nil {
		return err
	}
	defer j.Close()

	records := []journal.Record{}
	err = j.Replay(ctx, func(_ context.Context, rec journal.Record) error {
		if opts.Command != "" && rec.Name != opts.Command {
			return nil
		}
		records = append(records, rec)
		if opts.Limit > 0 && len(records) >= opts.Limit {
			return errLimitReached
		}
		return nil
	})
	if err != nil && !errors.Is(err, errLimitReached) {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		if werr := f.Error(CodeReplay, err.Error(), map[string]any{"journal": opts.Journal, "read": len(records)}); werr != nil {
			return werr
		}
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}

	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: records})
	}

	w := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(w, "No records.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(w, "%6d  %s  %-20s %s\n", rec.Seq, rec.Timestamp.Format(time.RFC3339), rec.Name, rec.Arg)
	}
	return nil
}
