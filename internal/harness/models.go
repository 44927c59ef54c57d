package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/repository"
	"github.com/roach88/prevalence/internal/sample"
)

// Models lists the models scenarios can run against.
var Models = map[string]opener{
	"blog": Model[*sample.Blog]{
		New:      sample.NewBlog,
		Register: sample.RegisterBlog,
		Queries: map[string]repository.QueryFunc[*sample.Blog]{
			"posts": func(ctx context.Context, b *sample.Blog) (any, error) {
				return sample.ListPosts(ctx, b)
			},
		},
	},
	"counter": Model[*sample.Counter]{
		New:      func() *sample.Counter { return &sample.Counter{} },
		Register: sample.RegisterCounter,
		Queries: map[string]repository.QueryFunc[*sample.Counter]{
			"value": func(ctx context.Context, c *sample.Counter) (any, error) {
				return sample.CounterValue(ctx, c)
			},
		},
	},
}

// Model describes how to build a repository for a scenario.
type Model[M any] struct {
	New      func() M
	Register func(*repository.Repository[M]) *repository.Repository[M]
	Queries  map[string]repository.QueryFunc[M]
}

// session hides the model type from the runner.
type session interface {
	Execute(ctx context.Context, name string, arg any) (any, error)
	Query(ctx context.Context, name string) (any, error)
	Snapshot(ctx context.Context) (any, error)
}

type opener interface {
	open(j journal.Journal, opts sessionOptions) (session, error)
}

type sessionOptions struct {
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

func (m Model[M]) open(j journal.Journal, opts sessionOptions) (session, error) {
	repo, err := repository.New(repository.Config[M]{
		Model:   m.New(),
		Journal: j,
		Clock:   opts.clock,
		NewID:   opts.newID,
		Logger:  opts.logger,
	})
	if err != nil {
		return nil, err
	}
	return &modelSession[M]{repo: m.Register(repo), queries: m.Queries}, nil
}

type modelSession[M any] struct {
	repo    *repository.Repository[M]
	queries map[string]repository.QueryFunc[M]
}

func (s *modelSession[M]) Execute(ctx context.Context, name string, arg any) (any, error) {
	return s.repo.Execute(ctx, name, arg)
}

func (s *modelSession[M]) Query(ctx context.Context, name string) (any, error) {
	fn, ok := s.queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q", name)
	}
	return s.repo.Query(ctx, fn)
}

func (s *modelSession[M]) Snapshot(ctx context.Context) (any, error) {
	return s.repo.Query(ctx, func(_ context.Context, model M) (any, error) {
		return model, nil
	})
}
