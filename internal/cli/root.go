package cli

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/roach88/prevalence/internal/config"
	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/metrics"
	"github.com/roach88/prevalence/internal/observe"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Metrics bool   // dump Prometheus metrics to stderr after the command

	Journal  string
	Driver   string
	RedisURL string
	Stream   string

	env    config.Config
	envErr error

	Logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the prevalence CLI.
// Flag defaults come from the PREVALENCE_* environment.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	opts.env, opts.envErr = config.Load()

	cmd := &cobra.Command{
		Use:   "prevalence",
		Short: "Prevalent-system journal tools",
		Long: `Inspect and replay command journals of in-memory models.

A prevalent system keeps its whole model in memory and journals every
command before applying it. Restarting replays the journal to rebuild the
model.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", opts.envErr)
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.setup(cmd)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Metrics {
				return nil
			}
			return opts.dumpMetrics(cmd)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics to stderr on exit")
	flags.StringVarP(&opts.Journal, "journal", "j", opts.env.Journal, "journal file or database path")
	flags.StringVar(&opts.Driver, "driver", opts.env.Driver, "journal driver (file|sqlite|redis)")
	flags.StringVar(&opts.RedisURL, "redis-url", opts.env.RedisURL, "Redis URL for the redis driver")
	flags.StringVar(&opts.Stream, "stream", opts.env.RedisStream, "Redis stream key for the redis driver")

	// Add subcommands
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewBlogCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup configures logging and metrics for the command about to run.
func (o *RootOptions) setup(cmd *cobra.Command) {
	level := o.env.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	o.registry = prometheus.NewRegistry()
	o.metrics = metrics.New(o.registry)
}

// logger returns the configured logger, or slog.Default() before setup.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// observer returns the observer passed to repositories.
func (o *RootOptions) observer() observe.Observer {
	obs := observe.Multi{observe.NewLogger(o.logger())}
	if o.metrics != nil {
		obs = append(obs, o.metrics)
	}
	return obs
}

// journalConfig returns the journal selected by flags and environment.
func (o *RootOptions) journalConfig() journal.Config {
	return journal.Config{
		Driver:   o.Driver,
		Path:     o.Journal,
		RedisURL: o.RedisURL,
		Stream:   o.Stream,
	}
}

// openJournal opens the configured journal. Failures map to
// ExitCommandError.
func (o *RootOptions) openJournal(ctx context.Context) (journal.Journal, error) {
	j, err := journal.Open(ctx, o.journalConfig())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	o.logger().Debug("journal opened", "driver", o.Driver, "path", o.Journal)
	return j, nil
}

// dumpMetrics writes the registry in the Prometheus text format.
func (o *RootOptions) dumpMetrics(cmd *cobra.Command) error {
	if o.registry == nil {
		return nil
	}
	families, err := o.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(cmd.ErrOrStderr(), mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
