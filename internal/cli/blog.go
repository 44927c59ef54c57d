package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/repository"
	"github.com/roach88/prevalence/internal/sample"
)

// BlogAddOptions holds flags for blog add.
type BlogAddOptions struct {
	*RootOptions
	ID      string
	Subject string
	Body    string
}

// NewBlogCommand creates the blog command group: a sample application kept
// in memory and journaled.
func NewBlogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blog",
		Short: "Sample blog application backed by the journal",
		Long: `A small blog whose posts live in memory and whose changes are journaled.

Every invocation rebuilds the blog by replaying the journal, then applies
the requested change.

Examples:
  prevalence blog add --id post#1 --subject Lorem
  prevalence blog list
  prevalence blog remove post#1`,
	}

	cmd.AddCommand(newBlogAddCommand(rootOpts))
	cmd.AddCommand(newBlogListCommand(rootOpts))
	cmd.AddCommand(newBlogRemoveCommand(rootOpts))
	return cmd
}

func newBlogAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlogAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add or replace a post",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			post := sample.Post{ID: opts.ID, Subject: opts.Subject, Body: opts.Body}
			return withBlog(cmd, rootOpts, func(ctx context.Context, repo *repository.Repository[*sample.Blog]) error {
				added, err := repository.ExecuteAs[sample.Post](ctx, repo, sample.AddPost, post)
				if err != nil {
					return commandFailed(cmd, rootOpts, sample.AddPost, err)
				}
				return outputPosts(cmd, rootOpts, []sample.Post{added})
			})
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "post id (required)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "post subject")
	cmd.Flags().StringVar(&opts.Body, "body", "", "post body")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newBlogListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List posts ordered by id",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlog(cmd, rootOpts, func(ctx context.Context, repo *repository.Repository[*sample.Blog]) error {
				posts, err := repository.QueryAs(ctx, repo, sample.ListPosts)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to list posts", err)
				}
				return outputPosts(cmd, rootOpts, posts)
			})
		},
	}
}

func newBlogRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id>",
		Short:         "Remove a post",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBlog(cmd, rootOpts, func(ctx context.Context, repo *repository.Repository[*sample.Blog]) error {
				removed, err := repository.ExecuteAs[bool](ctx, repo, sample.RemovePost, args[0])
				if err != nil {
					return commandFailed(cmd, rootOpts, sample.RemovePost, err)
				}
				f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				if rootOpts.Format == "json" {
					return f.Success(map[string]any{"id": args[0], "removed": removed})
				}
				if !removed {
					return f.Success(fmt.Sprintf("%s: not found", args[0]))
				}
				return f.Success(fmt.Sprintf("%s: removed", args[0]))
			})
		},
	}
}

// withBlog opens the journal and a blog repository over it for fn.
func withBlog(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *repository.Repository[*sample.Blog]) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	j, err := opts.openJournal(ctx)
	if err != nil {
		return err
	}
	defer j.Close()

	repo, err := newBlogRepository(j, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create repository", err)
	}
	return fn(ctx, repo)
}

func newBlogRepository(j journal.Journal, opts *RootOptions) (*repository.Repository[*sample.Blog], error) {
	repo, err := repository.New(repository.Config[*sample.Blog]{
		Model:    sample.NewBlog(),
		Journal:  j,
		Observer: opts.observer(),
		Logger:   opts.logger(),
	})
	if err != nil {
		return nil, err
	}
	return sample.RegisterBlog(repo), nil
}

// commandFailed reports a rejected command. A failed replay is reported as
// such.
func commandFailed(cmd *cobra.Command, opts *RootOptions, name string, err error) error {
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	code := CodeCommand
	if _, ok := err.(*repository.InitError); ok {
		code = CodeReplay
	}
	if werr := f.Error(code, err.Error(), map[string]any{"command": name}); werr != nil {
		return werr
	}
	return WrapExitError(ExitFailure, fmt.Sprintf("command %s failed", name), err)
}

func outputPosts(cmd *cobra.Command, opts *RootOptions, posts []sample.Post) error {
	if opts.Format == "json" {
		return writeResponse(cmd.OutOrStdout(), CLIResponse{Status: "ok", Data: posts})
	}

	w := cmd.OutOrStdout()
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts.")
		return nil
	}
	for _, p := range posts {
		fmt.Fprintf(w, "%s: %s\n", p.ID, p.Subject)
	}
	return nil
}
