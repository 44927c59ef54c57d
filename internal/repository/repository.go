package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/prevalence/internal/canonical"
	"github.com/roach88/prevalence/internal/journal"
	"github.com/roach88/prevalence/internal/lock"
	"github.com/roach88/prevalence/internal/marshal"
	"github.com/roach88/prevalence/internal/observe"
)

const tracerName = "github.com/roach88/prevalence/internal/repository"

// State is the initialization state of a Repository.
type State int32

const (
	// Fresh: constructed, replay not started.
	Fresh State = iota
	// Initializing: replay in progress.
	Initializing
	// Ready: replay succeeded; terminal.
	Ready
	// Failed: replay failed or the repository was poisoned; terminal.
	Failed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config holds the construction parameters of a Repository.
// Either Journal or Path is required.
type Config[M any] struct {
	// Model is the initial model; replay applies the journal on top of it.
	Model M

	// Journal is the durable log. If nil, a file journal at Path is used.
	Journal journal.Journal
	// Path of the file journal used when Journal is nil.
	Path string

	// Lock defaults to lock.NewRWLock(0).
	Lock lock.Locker
	// Marshal copies results before they leave the repository.
	// Defaults to marshal.Copy.
	Marshal func(any) (any, error)
	// Observer receives notifications. Defaults to observe.Nop.
	Observer observe.Observer
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Clock stamps journal records. Defaults to time.Now in UTC.
	Clock func() time.Time
	// NewID generates record IDs. Defaults to UUIDv7.
	NewID func() string

	// PoisonOnHandlerError moves the repository to Failed when a command
	// fails after its record was journaled. By default the failure is only
	// returned to the caller.
	PoisonOnHandlerError bool
}

// Repository owns a model, its command registry and its journal.
//
// Thread-safety: all methods are safe for concurrent use.
type Repository[M any] struct {
	model        M
	journal      journal.Journal
	ownsJournal  bool
	lock         lock.Locker
	marshal      func(any) (any, error)
	observer     observe.Observer
	log          *slog.Logger
	clock        func() time.Time
	newID        func() string
	poisonOnFail bool
	tracer       trace.Tracer

	mu       sync.RWMutex
	commands map[string]Handler[M]

	initOnce sync.Once
	initDone chan struct{}
	initErr  error
	state    atomic.Int32
	poisoned atomic.Pointer[PoisonedError]
}

// New creates a Repository. It performs no I/O; the journal is first read by
// the first Query or Execute.
func New[M any](cfg Config[M]) (*Repository[M], error) {
	r := &Repository[M]{
		model:        cfg.Model,
		journal:      cfg.Journal,
		lock:         cfg.Lock,
		marshal:      cfg.Marshal,
		observer:     cfg.Observer,
		log:          cfg.Logger,
		clock:        cfg.Clock,
		newID:        cfg.NewID,
		poisonOnFail: cfg.PoisonOnHandlerError,
		tracer:       otel.Tracer(tracerName),
		commands:     make(map[string]Handler[M]),
		initDone:     make(chan struct{}),
	}

	if r.journal == nil {
		if cfg.Path == "" {
			return nil, &ConfigurationError{
				Message: "repository requires a journal or a path to a journal file",
			}
		}
		r.journal = journal.NewFile(cfg.Path)
		r.ownsJournal = true
	}
	if r.lock == nil {
		r.lock = lock.NewRWLock(0)
	}
	if r.marshal == nil {
		r.marshal = marshal.Copy
	}
	if r.observer == nil {
		r.observer = observe.Nop{}
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.clock == nil {
		r.clock = func() time.Time { return time.Now().UTC() }
	}
	if r.newID == nil {
		r.newID = func() string { return uuid.Must(uuid.NewV7()).String() }
	}

	if cfg.Path != "" && cfg.Journal == nil {
		r.log.Debug("journalling to file", "path", cfg.Path)
	}
	return r, nil
}

// Register adds or replaces the handler for name and returns r for chaining.
// Use Wildcard as name to catch every unregistered command.
func (r *Repository[M]) Register(name string, h Handler[M]) *Repository[M] {
	if name == "" {
		panic("repository: Register with empty command name")
	}
	if h == nil {
		panic(fmt.Sprintf("repository: Register(%q) with nil handler", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = h
	return r
}

// resolve looks up name, then the wildcard.
func (r *Repository[M]) resolve(name string) (Handler[M], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.commands[name]; ok {
		return h, nil
	}
	if h, ok := r.commands[Wildcard]; ok {
		return h, nil
	}
	return nil, &CommandError{Name: name, Err: ErrUnknownCommand}
}

// State returns the current initialization state.
func (r *Repository[M]) State() State {
	if r.poisoned.Load() != nil {
		return Failed
	}
	return State(r.state.Load())
}

// Query runs fn against the model under the shared lock and returns a copy
// of its result. Errors from fn are returned unchanged.
func (r *Repository[M]) Query(ctx context.Context, fn QueryFunc[M]) (any, error) {
	ctx, span := r.tracer.Start(ctx, "repository.Query")
	defer span.End()

	out, err := r.query(ctx, fn)
	if err != nil {
		r.fail(span, observe.OpQuery, err)
		return nil, err
	}
	return out, nil
}

func (r *Repository[M]) query(ctx context.Context, fn QueryFunc[M]) (any, error) {
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	return lock.WithShared(ctx, r.lock, func(ctx context.Context) (any, error) {
		v, err := fn(ctx, r.model)
		if err != nil {
			return nil, err
		}
		return r.marshal(v)
	})
}

// Execute journals the command and applies it to the model.
//
// arg must be encodable as JSON. The record is appended before the handler
// runs; if the append fails the handler never runs. Once the record is
// durable the handler runs to completion even if ctx is cancelled.
func (r *Repository[M]) Execute(ctx context.Context, name string, arg any) (any, error) {
	ctx, span := r.tracer.Start(ctx, "repository.Execute",
		trace.WithAttributes(attribute.String("prevalence.command", name)))
	defer span.End()

	out, err := r.execute(ctx, name, arg)
	if err != nil {
		r.fail(span, observe.OpExecute, err)
		return nil, err
	}
	return out, nil
}

func (r *Repository[M]) execute(ctx context.Context, name string, arg any) (any, error) {
	if name == "" {
		return nil, &CommandError{Name: name, Err: ErrEmptyCommandName}
	}

	encoded, err := canonical.Marshal(arg)
	if err != nil {
		return nil, &ArgumentError{Command: name, Err: err}
	}

	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	return lock.WithExclusive(ctx, r.lock, func(ctx context.Context) (any, error) {
		if p := r.poisoned.Load(); p != nil {
			return nil, p
		}

		seq, err := r.journal.Append(ctx, journal.Record{
			ID:        r.newID(),
			Timestamp: r.clock(),
			Name:      name,
			Arg:       encoded,
		})
		if err != nil {
			return nil, err
		}

		// The record is durable: from here on the command must be applied
		// regardless of the caller going away.
		ctx = context.WithoutCancel(ctx)

		out, err := r.apply(ctx, name, Arg(encoded), false)
		if err != nil {
			return nil, r.journaledFailure(seq, name, err)
		}

		result, err := r.marshal(out)
		if err != nil {
			return nil, r.journaledFailure(seq, name, err)
		}
		r.observer.Executed(name, encoded, result)
		return result, nil
	})
}

// journaledFailure reports a command that failed after its record was
// appended and applies the poison policy. The caller holds the exclusive lock.
func (r *Repository[M]) journaledFailure(seq int64, name string, err error) error {
	r.log.Error("journaled command failed",
		"command", name,
		"seq", seq,
		"error", err,
	)
	if r.poisonOnFail {
		r.poisoned.Store(&PoisonedError{Seq: seq, Command: name, Err: err})
	}
	return err
}

// apply resolves and invokes the handler for name. The caller holds the
// exclusive lock.
func (r *Repository[M]) apply(ctx context.Context, name string, arg Arg, replay bool) (any, error) {
	h, err := r.resolve(name)
	if err != nil {
		return nil, err
	}
	return h(ctx, r.model, arg, Invocation[M]{
		Model:  r.model,
		Name:   name,
		Arg:    arg,
		Replay: replay,
	})
}

// ready blocks until the one-time initialization finished and reports its
// outcome. A cancelled ctx stops the wait, not the initialization.
func (r *Repository[M]) ready(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.state.Store(int32(Initializing))
		go r.initialize(context.WithoutCancel(ctx))
	})

	select {
	case <-r.initDone:
	default:
		select {
		case <-r.initDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if r.initErr != nil {
		return r.initErr
	}
	if p := r.poisoned.Load(); p != nil {
		return p
	}
	return nil
}

// initialize replays the journal under the exclusive lock. It runs exactly
// once per repository.
func (r *Repository[M]) initialize(ctx context.Context) {
	defer close(r.initDone)

	ctx, span := r.tracer.Start(ctx, "repository.Replay")
	defer span.End()

	r.log.Debug("initializing")
	start := time.Now()

	var (
		replayed int
		current  journal.Record
	)
	err := r.lock.Exclusive(ctx, func(ctx context.Context) error {
		return r.journal.Replay(ctx, func(ctx context.Context, rec journal.Record) error {
			current = rec
			if _, err := r.apply(ctx, rec.Name, Arg(rec.Arg), true); err != nil {
				return err
			}
			replayed++
			return nil
		})
	})
	span.SetAttributes(attribute.Int("prevalence.replayed", replayed))

	if err != nil {
		initErr := &InitError{Replayed: replayed, Err: err}
		if current.Seq > 0 && replayed < int(current.Seq) {
			initErr.Seq = current.Seq
			initErr.Command = current.Name
		}
		r.initErr = initErr
		r.state.Store(int32(Failed))

		r.log.Error("initialization failed", "replayed", replayed, "error", err)
		span.RecordError(initErr)
		span.SetStatus(codes.Error, "initialization failed")
		r.observer.Error(observe.OpInit, initErr)
		return
	}

	took := time.Since(start)
	r.state.Store(int32(Ready))
	r.log.Debug("initialization done", "replayed", replayed, "took", took)
	r.observer.Initialized(replayed, took)
}

// fail records err on the span and notifies the observer. Replay failures
// were already reported once by initialize.
func (r *Repository[M]) fail(span trace.Span, op string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if _, ok := err.(*InitError); ok {
		return
	}
	r.observer.Error(op, err)
}

// Close closes the journal if the repository opened it from Config.Path.
// A journal passed in Config.Journal is left to its owner.
func (r *Repository[M]) Close() error {
	if !r.ownsJournal {
		return nil
	}
	return r.lock.Exclusive(context.Background(), func(context.Context) error {
		return r.journal.Close()
	})
}

// QueryAs runs a typed query and returns its copied result as T.
func QueryAs[T, M any](ctx context.Context, r *Repository[M], fn func(ctx context.Context, model M) (T, error)) (T, error) {
	out, err := r.Query(ctx, func(ctx context.Context, model M) (any, error) {
		return fn(ctx, model)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](out)
}

// ExecuteAs runs a command and returns its copied result as T.
func ExecuteAs[T, M any](ctx context.Context, r *Repository[M], name string, arg any) (T, error) {
	out, err := r.Execute(ctx, name, arg)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](out)
}

func as[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("result has type %T, not %T", v, zero)
	}
	return typed, nil
}
