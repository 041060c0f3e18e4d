package workflow

import (
	"fmt"
	"log/slog"

	"github.com/roach88/procstate/internal/script"
)

// DefaultMaxEngineSteps bounds a single DoEngineSteps call.
const DefaultMaxEngineSteps = 10000

// ScriptEngine evaluates condition expressions and executes scripts
// against a task's attribute map. Errors are returned unchanged to the
// caller that completed the task.
type ScriptEngine interface {
	Evaluate(expr string, data map[string]any) (any, error)
	Execute(script string, data map[string]any) (map[string]any, error)
}

// Workflow is one running instance of a Process. It owns the task tree.
// Nested workflows are created by call activities and reference their
// outer workflow; the chain qualifies serialized branch names.
//
// A Workflow is not safe for concurrent use. Every operation runs to
// completion before returning.
type Workflow struct {
	process *Process
	name    string
	root    *Task

	outer      *Workflow
	parentTask *Task

	readOnly bool
	scripts  ScriptEngine
	logger   *slog.Logger
	maxSteps int

	seq            int
	cancelled      bool
	success        bool
	finished       bool
	cancelledTasks int
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithReadOnly rejects engine steps, message delivery and task completion.
// Restore still works on a read-only workflow.
func WithReadOnly(readOnly bool) Option {
	return func(w *Workflow) { w.readOnly = readOnly }
}

// WithScriptEngine replaces the default CUE-backed script engine.
func WithScriptEngine(se ScriptEngine) Option {
	return func(w *Workflow) {
		if se != nil {
			w.scripts = se
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMaxEngineSteps sets the per-call quota of DoEngineSteps.
//
// Default: 10000 steps (DefaultMaxEngineSteps)
func WithMaxEngineSteps(n int) Option {
	return func(w *Workflow) { w.maxSteps = n }
}

// WithName overrides the workflow name. Defaults to the process name.
func WithName(name string) Option {
	return func(w *Workflow) { w.name = name }
}

// New creates a workflow for p whose start task is READY.
func New(p *Process, opts ...Option) (*Workflow, error) {
	return create(Live, p, opts)
}

// Restore creates a workflow for p and replays state into it. No
// observation hook fires, not even for the start task.
func Restore(p *Process, state string, opts ...Option) (*Workflow, error) {
	w, err := create(Silent, p, opts)
	if err != nil {
		return nil, err
	}
	if err := w.restore(state); err != nil {
		return nil, err
	}
	return w, nil
}

func create(m Mode, p *Process, opts []Option) (*Workflow, error) {
	if p == nil {
		return nil, fmt.Errorf("workflow: process is required")
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("workflow: %w", err)
	}
	w := &Workflow{
		process:  p,
		name:     p.Name(),
		logger:   slog.Default(),
		maxSteps: DefaultMaxEngineSteps,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.scripts == nil {
		w.scripts = script.New()
	}
	w.root = newTask(w, p.Start(), nil)
	if err := w.root.updateState(m); err != nil {
		return nil, err
	}
	return w, nil
}

// nested creates the workflow of a subprocess entered by parent.
func (w *Workflow) nested(parent *Task, p *Process) *Workflow {
	return &Workflow{
		process:    p,
		name:       parent.spec.Name(),
		outer:      w,
		parentTask: parent,
		readOnly:   w.readOnly,
		scripts:    w.scripts,
		logger:     w.logger,
		maxSteps:   w.maxSteps,
	}
}

// Name returns the workflow name. Nested workflows are named after the
// call activity that spawned them.
func (w *Workflow) Name() string { return w.name }

// Process returns the graph this workflow executes.
func (w *Workflow) Process() *Process { return w.process }

// Root returns the task of the process start.
func (w *Workflow) Root() *Task { return w.root }

// Outer returns the enclosing workflow, or nil at top level.
func (w *Workflow) Outer() *Workflow { return w.outer }

// ReadOnly reports whether mutations are rejected.
func (w *Workflow) ReadOnly() bool { return w.readOnly }

// Cancelled reports whether the workflow was cancelled, and if so whether
// the cancellation counts as success.
func (w *Workflow) Cancelled() (cancelled, success bool) {
	return w.cancelled, w.success
}

// CancelledTasks is the number of task cancellations recorded.
func (w *Workflow) CancelledTasks() int { return w.cancelledTasks }

func (w *Workflow) top() *Workflow {
	for w.outer != nil {
		w = w.outer
	}
	return w
}

func (w *Workflow) nextSeq() int {
	w.seq++
	return w.seq
}

func (w *Workflow) checkWritable(m Mode) error {
	if w.readOnly && !m.replaying {
		return newError(ErrCodeReadOnly, "", "workflow %s is read-only", w.name)
	}
	return nil
}

// Tasks returns every task in the tree, including nested subprocess tasks,
// whose state matches mask. Order is depth-first in child order.
func (w *Workflow) Tasks(mask StateMask) []*Task {
	var out []*Task
	if w.root == nil {
		return out
	}
	w.root.walk(func(t *Task) {
		if t.state.Matches(mask) {
			out = append(out, t)
		}
	})
	return out
}

// LocalTasks is Tasks restricted to tasks that belong to w itself.
func (w *Workflow) LocalTasks(mask StateMask) []*Task {
	var out []*Task
	for _, t := range w.Tasks(mask) {
		if t.workflow == w {
			out = append(out, t)
		}
	}
	return out
}

// IsCompleted reports whether no task of w, or of a subprocess it is still
// waiting on, can make progress.
func (w *Workflow) IsCompleted() bool {
	if w.root == nil {
		return false
	}
	done := true
	w.root.walk(func(t *Task) {
		if t.workflow != w {
			return
		}
		if !t.IsFinished() || (t.sub != nil && !t.sub.finished && !t.sub.IsCompleted()) {
			done = false
		}
	})
	return done
}

// Cancel cancels every unfinished task of the tree.
func (w *Workflow) Cancel(success bool) error {
	return w.cancel(Live, success)
}

func (w *Workflow) cancel(m Mode, success bool) error {
	for _, t := range w.Tasks(AnyState &^ (Completed | Cancelled)) {
		if err := t.cancel(m); err != nil {
			return err
		}
	}
	w.cancelled = true
	w.success = success
	w.logger.Info("workflow cancelled", "workflow", w.name, "success", success)
	return nil
}

func (w *Workflow) taskCancelled(t *Task) {
	w.cancelledTasks++
	w.logger.Debug("task cancelled", "task", t.spec.Name(), "seq", t.seq, "workflow", w.name)
}

// taskCompleted checks whether t finished its workflow. A finished nested
// workflow resumes its call activity, which continues with its outputs.
func (w *Workflow) taskCompleted(m Mode, t *Task) error {
	if w.outer == nil || w.finished || !w.IsCompleted() {
		return nil
	}
	w.finished = true
	parent := w.parentTask
	w.logger.Debug("subprocess completed", "workflow", w.name, "process", w.process.Name())

	parent.SetAttributes(t.Attributes())
	next, err := parent.spec.NextSpecs(parent)
	if err != nil {
		return fmt.Errorf("leave subprocess %s: %w", w.name, err)
	}
	if err := parent.SpawnChildren(m, next); err != nil {
		return err
	}
	return w.outer.taskCompleted(m, parent)
}
