package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/procstate/internal/definition"
	"github.com/roach88/procstate/internal/store"
	"github.com/roach88/procstate/internal/workflow"
)

// DefaultMaxSteps is the default engine step quota per operation.
const DefaultMaxSteps = workflow.DefaultMaxEngineSteps

// DefinitionLoader loads the definition file an instance was started from.
type DefinitionLoader func(path string) (*definition.Registry, error)

// Engine drives process instances persisted in a store.
//
// Thread-safety: all operations are serialized; an Engine may be shared
// between goroutines.
type Engine struct {
	mu       sync.Mutex
	store    *store.Store
	clock    *Clock
	ids      IDGenerator
	load     DefinitionLoader
	defs     map[string]*definition.Registry
	logger   *slog.Logger
	maxSteps int
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithIDGenerator sets the instance id generator. Defaults to UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithClock sets the logical clock. By default the clock resumes after the
// highest seq found in the store.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxSteps sets the engine step quota per operation.
//
// Default: 10000 steps (DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) EngineOption {
	return func(e *Engine) { e.maxSteps = maxSteps }
}

// WithDefinitionLoader replaces definition.LoadFile.
func WithDefinitionLoader(l DefinitionLoader) EngineOption {
	return func(e *Engine) { e.load = l }
}

// New creates an Engine on top of s.
func New(ctx context.Context, s *store.Store, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:    s,
		ids:      UUIDv7Generator{},
		load:     definition.LoadFile,
		defs:     make(map[string]*definition.Registry),
		logger:   slog.Default(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		seq, err := s.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		e.clock = NewClockAt(seq)
	}
	return e, nil
}

// Start creates an instance of process from the definition at path, runs
// it to its first wait and saves it.
func (e *Engine) Start(ctx context.Context, path, process string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	reg, err := e.registry(path)
	if err != nil {
		return Status{}, err
	}
	p, ok := reg.Process(process)
	if !ok {
		return Status{}, &RuntimeError{
			Code:    ErrCodeUnknownProcess,
			Message: fmt.Sprintf("process %q not found in %s (have %v)", process, path, reg.Names()),
		}
	}

	id := e.ids.Generate()
	w, err := workflow.New(p, e.workflowOptions(id)...)
	if err != nil {
		return Status{}, err
	}
	if err := w.DoEngineSteps(); err != nil {
		return Status{}, err
	}

	inst := store.Instance{
		ID:         id,
		Process:    p.Name(),
		Definition: path,
		Digest:     reg.Digest(),
		CreatedSeq: e.clock.Next(),
	}
	if err := e.store.CreateInstance(ctx, inst); err != nil {
		return Status{}, err
	}
	e.logger.Info("instance started", "instance", id, "process", p.Name(), "seq", inst.CreatedSeq)
	return e.save(ctx, id, w, "start")
}

// Complete completes the READY task named task after merging attrs into
// its attributes, then advances and saves the instance.
func (e *Engine) Complete(ctx context.Context, id, task string, attrs map[string]any) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, err := e.restore(ctx, id)
	if err != nil {
		return Status{}, err
	}
	t, err := w.FindReady(task)
	if err != nil {
		return Status{}, err
	}
	t.SetAttributes(attrs)
	if err := w.Complete(t); err != nil {
		return Status{}, err
	}
	if err := w.DoEngineSteps(); err != nil {
		return Status{}, err
	}
	return e.save(ctx, id, w, "complete "+task)
}

// Deliver routes msg to the waiting tasks of an instance, then advances
// and saves it. It returns how many tasks accepted the message.
func (e *Engine) Deliver(ctx context.Context, id string, msg workflow.Message) (Status, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w, err := e.restore(ctx, id)
	if err != nil {
		return Status{}, 0, err
	}
	matched, err := w.AcceptMessage(msg)
	if err != nil {
		return Status{}, 0, err
	}
	if err := w.DoEngineSteps(); err != nil {
		return Status{}, 0, err
	}
	st, err := e.save(ctx, id, w, "message "+msg.Name)
	return st, matched, err
}

// Status restores an instance read-only and describes it.
func (e *Engine) Status(ctx context.Context, id string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, w, err := e.restoreSnapshot(ctx, id, workflow.WithReadOnly(true))
	if err != nil {
		return Status{}, err
	}
	return describe(id, snap.Seq, w)
}

// Workflow restores an instance read-only, for inspection.
func (e *Engine) Workflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, w, err := e.restoreSnapshot(ctx, id, workflow.WithReadOnly(true))
	return w, err
}

// History returns every snapshot of an instance, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]store.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.instance(ctx, id); err != nil {
		return nil, err
	}
	return e.store.Snapshots(ctx, id)
}

// Instances lists instances; with activeOnly, only those not yet complete.
func (e *Engine) Instances(ctx context.Context, activeOnly bool) ([]store.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if activeOnly {
		return e.store.ActiveInstances(ctx, workflow.CompleteState)
	}
	return e.store.ListInstances(ctx, "")
}

func (e *Engine) workflowOptions(id string) []workflow.Option {
	return []workflow.Option{
		workflow.WithLogger(e.logger.With("instance", id)),
		workflow.WithMaxEngineSteps(e.maxSteps),
	}
}

func (e *Engine) registry(path string) (*definition.Registry, error) {
	if reg, ok := e.defs[path]; ok {
		return reg, nil
	}
	reg, err := e.load(path)
	if err != nil {
		return nil, err
	}
	e.defs[path] = reg
	return reg, nil
}

func (e *Engine) instance(ctx context.Context, id string) (store.Instance, error) {
	inst, err := e.store.GetInstance(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Instance{}, &RuntimeError{Code: ErrCodeUnknownInstance, Message: "no such instance", Instance: id}
	}
	return inst, err
}

func (e *Engine) restore(ctx context.Context, id string) (*workflow.Workflow, error) {
	_, w, err := e.restoreSnapshot(ctx, id)
	return w, err
}

// restoreSnapshot rebuilds the workflow of the latest snapshot and puts the
// saved attributes back on the live branches.
func (e *Engine) restoreSnapshot(ctx context.Context, id string, opts ...workflow.Option) (store.Snapshot, *workflow.Workflow, error) {
	inst, err := e.instance(ctx, id)
	if err != nil {
		return store.Snapshot{}, nil, err
	}
	snap, err := e.store.LatestSnapshot(ctx, id)
	if err != nil {
		return store.Snapshot{}, nil, err
	}
	e.clock.Observe(snap.Seq)
	reg, err := e.registry(inst.Definition)
	if err != nil {
		return store.Snapshot{}, nil, err
	}
	if inst.Digest != "" && reg.Digest() != inst.Digest {
		e.logger.Warn("definition changed since instance start",
			"instance", id,
			"definition", inst.Definition,
		)
	}
	p, ok := reg.Process(inst.Process)
	if !ok {
		return store.Snapshot{}, nil, &RuntimeError{
			Code:     ErrCodeDefinitionChanged,
			Message:  fmt.Sprintf("process %q no longer defined in %s", inst.Process, inst.Definition),
			Instance: id,
		}
	}

	w, err := workflow.Restore(p, snap.State, append(e.workflowOptions(id), opts...)...)
	if workflow.IsUnrecoverable(err) {
		return store.Snapshot{}, nil, &RuntimeError{
			Code:     ErrCodeDefinitionChanged,
			Message:  err.Error(),
			Instance: id,
		}
	}
	if err != nil {
		return store.Snapshot{}, nil, err
	}

	if err := w.ApplyBranchAttributes(snap.Attributes); err != nil {
		return store.Snapshot{}, nil, err
	}
	return snap, w, nil
}

func (e *Engine) save(ctx context.Context, id string, w *workflow.Workflow, operation string) (Status, error) {
	state, err := w.State()
	if err != nil {
		return Status{}, err
	}
	attrs, err := w.BranchAttributes()
	if err != nil {
		return Status{}, err
	}

	snap := store.Snapshot{
		InstanceID: id,
		Seq:        e.clock.Next(),
		Operation:  operation,
		State:      state,
		Attributes: attrs,
	}
	if err := e.store.WriteSnapshot(ctx, snap); err != nil {
		return Status{}, err
	}
	e.logger.Debug("snapshot saved", "instance", id, "seq", snap.Seq, "operation", operation, "state", state)
	return describe(id, snap.Seq, w)
}
