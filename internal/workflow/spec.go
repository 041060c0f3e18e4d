package workflow

import (
	"fmt"
	"sort"
)

// Mode is threaded through every call that can fire a lifecycle hook.
// Observation hooks never fire for a replaying mode; that is the only
// difference between Live and Silent execution.
type Mode struct {
	replaying bool
}

var (
	// Live is the mode of normal, externally observable execution.
	Live = Mode{}

	// Silent is the mode used while a serialized state is being replayed.
	Silent = Mode{replaying: true}
)

// Replaying reports whether observation hooks are suppressed.
func (m Mode) Replaying() bool {
	return m.replaying
}

// Message is an external event delivered to waiting tasks.
type Message struct {
	Name    string
	Payload map[string]any
}

// TaskSpec is one node of a process graph. Every kind of task
// specification satisfies this contract by embedding Base and overriding
// the hooks it needs; the scheduler never inspects concrete kinds.
//
// Hooks receive the Task they act on and dispatch back through
// t.Spec(), so overrides in the embedding type are always honored.
type TaskSpec interface {
	// Name identifies the spec, unique within its Process.
	Name() string

	// Outputs returns successor specs in connection order. The order is
	// the tie-break rule for route discovery and must not be modified.
	Outputs() []TaskSpec

	// Inputs returns predecessor specs in connection order.
	Inputs() []TaskSpec

	// FlowByID looks up an outgoing sequence flow by its id.
	FlowByID(id string) (SequenceFlow, bool)

	// FlowTo looks up the outgoing sequence flow that reaches target.
	FlowTo(target TaskSpec) (SequenceFlow, bool)

	// Flows returns all outgoing sequence flows in connection order.
	Flows() []SequenceFlow

	// IsEngineTask reports whether the scheduler completes READY tasks of
	// this spec on its own. Defaults to true.
	IsEngineTask() bool

	// Subprocess returns the nested process entered by this spec, or nil.
	Subprocess() *Process

	// NextSpecs selects the outputs a completing task continues to.
	NextSpecs(t *Task) ([]TaskSpec, error)

	EnteringReadyState(t *Task)
	EnteringWaitingState(t *Task)
	EnteringCompleteState(t *Task)
	EnteringCancelledState(t *Task)

	// UpdateStateHook asks the task to reconsider its state. It must leave
	// the task READY, WAITING or unchanged.
	UpdateStateHook(m Mode, t *Task) error

	// OnCompleteHook runs after generic completion bookkeeping.
	OnCompleteHook(m Mode, t *Task) error

	// ChildCompleteHook is called on the parent's spec when child completes.
	ChildCompleteHook(m Mode, child *Task) error

	// AcceptMessage offers msg to a WAITING task and reports whether it
	// matched.
	AcceptMessage(m Mode, t *Task, msg Message) (bool, error)

	base() *Base
}

// ObserverFunc receives entering_* notifications for a spec. state is the
// state the task just entered.
type ObserverFunc func(state State, t *Task)

// Base carries the routing data shared by all task specifications and the
// default behavior for every hook.
type Base struct {
	name        string
	outputs     []TaskSpec
	inputs      []TaskSpec
	flows       []SequenceFlow
	byID        map[string]int
	byTarget    map[string]int
	conditions  map[string]string
	defaultFlow string
	observers   []ObserverFunc
}

// NewBase creates the embedded base for a spec named name.
func NewBase(name string) Base {
	return Base{
		name:       name,
		byID:       make(map[string]int),
		byTarget:   make(map[string]int),
		conditions: make(map[string]string),
	}
}

func (b *Base) base() *Base { return b }

// Name implements TaskSpec.
func (b *Base) Name() string { return b.name }

// Outputs implements TaskSpec.
func (b *Base) Outputs() []TaskSpec { return b.outputs }

// Inputs implements TaskSpec.
func (b *Base) Inputs() []TaskSpec { return b.inputs }

// FlowByID implements TaskSpec.
func (b *Base) FlowByID(id string) (SequenceFlow, bool) {
	i, ok := b.byID[id]
	if !ok {
		return SequenceFlow{}, false
	}
	return b.flows[i], true
}

// FlowTo implements TaskSpec.
func (b *Base) FlowTo(target TaskSpec) (SequenceFlow, bool) {
	i, ok := b.byTarget[target.Name()]
	if !ok {
		return SequenceFlow{}, false
	}
	return b.flows[i], true
}

// Flows implements TaskSpec.
func (b *Base) Flows() []SequenceFlow {
	out := make([]SequenceFlow, len(b.flows))
	copy(out, b.flows)
	return out
}

// OutgoingNames returns the display names of all outgoing flows, sorted.
func (b *Base) OutgoingNames() []string {
	names := make([]string, 0, len(b.flows))
	for _, f := range b.flows {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Condition returns the condition expression guarding the flow with id.
func (b *Base) Condition(flowID string) (string, bool) {
	c, ok := b.conditions[flowID]
	return c, ok
}

// DefaultFlow returns the id of the flow taken when no condition matches.
func (b *Base) DefaultFlow() string { return b.defaultFlow }

// SetDefaultFlow marks an existing outgoing flow as the default one.
func (b *Base) SetDefaultFlow(flowID string) error {
	if _, ok := b.byID[flowID]; !ok {
		return fmt.Errorf("spec %s: default flow %q is not an outgoing flow", b.name, flowID)
	}
	b.defaultFlow = flowID
	return nil
}

// Observe registers fn for the entering_* notifications of this spec.
func (b *Base) Observe(fn ObserverFunc) {
	b.observers = append(b.observers, fn)
}

func (b *Base) notify(state State, t *Task) {
	for _, fn := range b.observers {
		fn(state, t)
	}
}

// IsEngineTask implements TaskSpec.
func (b *Base) IsEngineTask() bool { return true }

// Subprocess implements TaskSpec.
func (b *Base) Subprocess() *Process { return nil }

// NextSpecs implements TaskSpec: follow every output.
func (b *Base) NextSpecs(t *Task) ([]TaskSpec, error) { return b.outputs, nil }

// EnteringReadyState implements TaskSpec.
func (b *Base) EnteringReadyState(t *Task) { b.notify(Ready, t) }

// EnteringWaitingState implements TaskSpec.
func (b *Base) EnteringWaitingState(t *Task) { b.notify(Waiting, t) }

// EnteringCompleteState implements TaskSpec.
func (b *Base) EnteringCompleteState(t *Task) { b.notify(Completed, t) }

// EnteringCancelledState implements TaskSpec.
func (b *Base) EnteringCancelledState(t *Task) { b.notify(Cancelled, t) }

// UpdateStateHook implements TaskSpec. A pending load target wins; otherwise
// the task becomes READY once its parent has finished.
func (b *Base) UpdateStateHook(m Mode, t *Task) error {
	if t.ApplyLoadTarget(m) {
		return nil
	}
	if !t.ParentFinished() {
		return nil
	}
	t.SetReady(m)
	return nil
}

// OnCompleteHook implements TaskSpec: spawn a child per selected output.
func (b *Base) OnCompleteHook(m Mode, t *Task) error {
	next, err := t.Spec().NextSpecs(t)
	if err != nil {
		return err
	}
	return t.SpawnChildren(m, next)
}

// ChildCompleteHook implements TaskSpec.
func (b *Base) ChildCompleteHook(m Mode, child *Task) error { return nil }

// AcceptMessage implements TaskSpec.
func (b *Base) AcceptMessage(m Mode, t *Task, msg Message) (bool, error) { return false, nil }

// Connect adds an outgoing sequence flow from one spec to another.
// Flow ids must be unique among from's outgoing flows and may not contain
// ':' or ';'. from may reach a given target through one flow only.
func Connect(from, to TaskSpec, flowID, flowName string) error {
	fb := from.base()
	if err := CheckStateName("sequence flow id", flowID); err != nil {
		return fmt.Errorf("spec %s: %w", fb.name, err)
	}
	if _, dup := fb.byID[flowID]; dup {
		return fmt.Errorf("spec %s: duplicate sequence flow id %q", fb.name, flowID)
	}
	if _, dup := fb.byTarget[to.Name()]; dup {
		return fmt.Errorf("spec %s: already connected to %s", fb.name, to.Name())
	}
	fb.flows = append(fb.flows, SequenceFlow{ID: flowID, Name: flowName, Target: to})
	fb.byID[flowID] = len(fb.flows) - 1
	fb.byTarget[to.Name()] = len(fb.flows) - 1
	fb.outputs = append(fb.outputs, to)
	tb := to.base()
	tb.inputs = append(tb.inputs, from)
	return nil
}

// ConnectIf is Connect with a condition expression guarding the flow.
func ConnectIf(from, to TaskSpec, flowID, flowName, condition string) error {
	if err := Connect(from, to, flowID, flowName); err != nil {
		return err
	}
	from.base().conditions[flowID] = condition
	return nil
}
