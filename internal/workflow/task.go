package workflow

import (
	"fmt"
	"maps"
)

// Task is one runtime instance of a TaskSpec, positioned in the execution
// tree. Identity is the position in the tree; it is not preserved across
// Restore.
//
// The tree is exclusively owned by its top-level Workflow. Tasks of a
// nested subprocess are grafted under the call activity task that spawned
// them but keep a reference to the nested Workflow.
type Task struct {
	seq      int
	spec     TaskSpec
	state    State
	parent   *Task
	children []*Task
	workflow *Workflow

	attrs    map[string]any
	internal map[string]any

	loadTarget State
	sub        *Workflow
}

func newTask(w *Workflow, spec TaskSpec, parent *Task) *Task {
	t := &Task{
		seq:      w.top().nextSeq(),
		spec:     spec,
		state:    Future,
		parent:   parent,
		workflow: w,
		attrs:    make(map[string]any),
		internal: make(map[string]any),
	}
	if parent != nil {
		maps.Copy(t.attrs, parent.attrs)
	}
	return t
}

// Spec returns the task's specification.
func (t *Task) Spec() TaskSpec { return t.spec }

// Name returns the spec name.
func (t *Task) Name() string { return t.spec.Name() }

// State returns the current state.
func (t *Task) State() State { return t.state }

// Seq is a creation counter, unique within one workflow chain. It is only
// meant for logs.
func (t *Task) Seq() int { return t.seq }

// Parent returns the parent task, or nil for the root.
func (t *Task) Parent() *Task { return t.parent }

// Children returns the owned children in order.
func (t *Task) Children() []*Task {
	out := make([]*Task, len(t.children))
	copy(out, t.children)
	return out
}

// Workflow returns the workflow the task belongs to. For tasks of a
// subprocess this is the nested workflow.
func (t *Task) Workflow() *Workflow { return t.workflow }

// Subworkflow returns the nested workflow spawned by this task, if any.
func (t *Task) Subworkflow() *Workflow { return t.sub }

// IsFinished reports whether the task reached a terminal state.
func (t *Task) IsFinished() bool { return t.state.IsFinished() }

// ParentFinished reports whether the parent is finished. The root's parent
// counts as finished.
func (t *Task) ParentFinished() bool {
	return t.parent == nil || t.parent.IsFinished()
}

// Attribute returns one runtime attribute.
func (t *Task) Attribute(key string) (any, bool) {
	v, ok := t.attrs[key]
	return v, ok
}

// Attributes returns a copy of the attribute map.
func (t *Task) Attributes() map[string]any {
	return maps.Clone(t.attrs)
}

// SetAttribute stores one runtime attribute, e.g. a user choice.
func (t *Task) SetAttribute(key string, value any) {
	t.attrs[key] = value
}

// SetAttributes merges values into the attribute map.
func (t *Task) SetAttributes(values map[string]any) {
	maps.Copy(t.attrs, values)
}

// Internal returns spec bookkeeping data that is not part of the
// attribute map.
func (t *Task) Internal(key string) (any, bool) {
	v, ok := t.internal[key]
	return v, ok
}

// SetInternal stores spec bookkeeping data.
func (t *Task) SetInternal(key string, value any) {
	t.internal[key] = value
}

// String is used in logs and errors.
func (t *Task) String() string {
	return fmt.Sprintf("%s#%d(%s)", t.spec.Name(), t.seq, t.state)
}

// SetReady moves the task to READY. The entering_ready hook fires only for
// a genuine transition outside replay.
func (t *Task) SetReady(m Mode) {
	if t.state == Ready {
		return
	}
	t.state = Ready
	t.workflow.logger.Debug("task ready", "task", t.spec.Name(), "seq", t.seq, "workflow", t.workflow.name)
	if !m.replaying {
		t.spec.EnteringReadyState(t)
	}
}

// SetWaiting moves the task to WAITING. The entering_waiting hook fires
// only for a genuine transition outside replay.
func (t *Task) SetWaiting(m Mode) {
	if t.state == Waiting {
		return
	}
	t.state = Waiting
	t.workflow.logger.Debug("task waiting", "task", t.spec.Name(), "seq", t.seq, "workflow", t.workflow.name)
	if !m.replaying {
		t.spec.EnteringWaitingState(t)
	}
}

// LoadTarget returns the state replay wants this task to be forced into.
func (t *Task) LoadTarget() (State, bool) {
	return t.loadTarget, t.loadTarget != 0
}

// ApplyLoadTarget forces a pending load target state and consumes it.
// Spec kinds with their own UpdateStateHook call it first.
func (t *Task) ApplyLoadTarget(m Mode) bool {
	target, ok := t.LoadTarget()
	if !ok {
		return false
	}
	t.loadTarget = 0
	switch target {
	case Waiting:
		t.SetWaiting(m)
	default:
		t.SetReady(m)
	}
	return true
}

// SpawnChildren creates one FUTURE child per spec and lets each
// reconsider its state.
func (t *Task) SpawnChildren(m Mode, specs []TaskSpec) error {
	created := make([]*Task, 0, len(specs))
	for _, s := range specs {
		child := newTask(t.workflow, s, t)
		t.children = append(t.children, child)
		created = append(created, child)
	}
	for _, child := range created {
		if err := child.updateState(m); err != nil {
			return err
		}
	}
	return nil
}

// CompleteMerged finishes a task whose branch was absorbed by another
// instance of the same spec, e.g. a join. No hooks fire and no children
// are created.
func (t *Task) CompleteMerged() {
	if t.IsFinished() {
		return
	}
	t.state = Completed
	t.replaceChildren(nil)
	t.workflow.logger.Debug("task merged", "task", t.spec.Name(), "seq", t.seq)
}

// EnterSubprocess spawns a nested workflow for proc and grafts its start
// task under t. Call activity specs use it from their completion hook.
func (t *Task) EnterSubprocess(m Mode, proc *Process) (*Workflow, error) {
	if t.sub != nil {
		return nil, newError(ErrCodeIntegrity, t.spec.Name(), "subprocess already entered")
	}
	sub := t.workflow.nested(t, proc)
	t.sub = sub
	root := newTask(sub, proc.Start(), t)
	sub.root = root
	t.children = append(t.children, root)
	t.workflow.logger.Debug("entering subprocess", "task", t.spec.Name(), "process", proc.Name())
	if err := root.updateState(m); err != nil {
		return nil, err
	}
	return sub, nil
}

// Evaluate runs a condition expression against the task's attributes.
func (t *Task) Evaluate(expr string) (bool, error) {
	v, err := t.workflow.scripts.Evaluate(expr, t.Attributes())
	if err != nil {
		return false, fmt.Errorf("evaluate %q in %s: %w", expr, t.spec.Name(), err)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("evaluate %q in %s: result %v is not a boolean", expr, t.spec.Name(), v)
	}
	return b, nil
}

// RunScript executes a side-effecting script and stores the resulting
// attributes on the task.
func (t *Task) RunScript(script string) error {
	out, err := t.workflow.scripts.Execute(script, t.Attributes())
	if err != nil {
		return fmt.Errorf("execute script in %s: %w", t.spec.Name(), err)
	}
	t.attrs = out
	return nil
}

func (t *Task) updateState(m Mode) error {
	return t.spec.UpdateStateHook(m, t)
}

// complete runs generic completion: bookkeeping, the spec's completion
// hook, the parent's child hook, then the observation hook.
func (t *Task) complete(m Mode) error {
	if err := t.workflow.checkWritable(m); err != nil {
		return err
	}
	t.state = Completed
	t.workflow.logger.Debug("task completed", "task", t.spec.Name(), "seq", t.seq, "workflow", t.workflow.name)

	if err := t.spec.OnCompleteHook(m, t); err != nil {
		return fmt.Errorf("complete %s: %w", t.spec.Name(), err)
	}
	if t.parent != nil {
		if err := t.parent.spec.ChildCompleteHook(m, t); err != nil {
			return fmt.Errorf("complete %s: child hook of %s: %w", t.spec.Name(), t.parent.spec.Name(), err)
		}
	}
	if !m.replaying {
		t.spec.EnteringCompleteState(t)
	}
	return t.workflow.taskCompleted(m, t)
}

// completeSilently forces COMPLETED and replaces the children with exactly
// one FUTURE child per spec, bypassing every hook.
func (t *Task) completeSilently(specs []TaskSpec) {
	if t.IsFinished() {
		return
	}
	t.state = Completed
	children := make([]*Task, 0, len(specs))
	for _, s := range specs {
		children = append(children, newTask(t.workflow, s, t))
	}
	t.replaceChildren(children)
}

// replaceChildren discards ownership of the current children and adopts
// children in their place.
func (t *Task) replaceChildren(children []*Task) {
	for _, old := range t.children {
		old.parent = nil
	}
	for _, c := range children {
		c.parent = t
	}
	t.children = children
}

func (t *Task) cancel(m Mode) error {
	if t.IsFinished() {
		return nil
	}
	if err := t.workflow.checkWritable(m); err != nil {
		return err
	}
	t.state = Cancelled
	t.workflow.taskCancelled(t)
	if !m.replaying {
		t.spec.EnteringCancelledState(t)
	}
	return nil
}

// walk visits t and its subtree depth-first in child order.
func (t *Task) walk(fn func(*Task)) {
	fn(t)
	for _, c := range t.children {
		c.walk(fn)
	}
}
