package tasks

import "github.com/roach88/procstate/internal/workflow"

// ExclusiveGateway follows exactly one outgoing flow: the first, in
// connection order, whose condition holds. Flows without a condition
// always hold. The default flow is taken when nothing else does.
type ExclusiveGateway struct {
	workflow.Base
}

// NewExclusiveGateway creates an exclusive gateway.
func NewExclusiveGateway(name string) *ExclusiveGateway {
	return &ExclusiveGateway{Base: workflow.NewBase(name)}
}

// NextSpecs evaluates the conditions against the task attributes.
func (g *ExclusiveGateway) NextSpecs(t *workflow.Task) ([]workflow.TaskSpec, error) {
	def := g.DefaultFlow()
	for _, f := range g.Flows() {
		if f.ID == def {
			continue
		}
		cond, ok := g.Condition(f.ID)
		if !ok {
			return []workflow.TaskSpec{f.Target}, nil
		}
		hit, err := t.Evaluate(cond)
		if err != nil {
			return nil, err
		}
		if hit {
			return []workflow.TaskSpec{f.Target}, nil
		}
	}
	if def != "" {
		f, _ := g.FlowByID(def)
		return []workflow.TaskSpec{f.Target}, nil
	}
	return nil, &workflow.WorkflowError{
		Code:    workflow.ErrCodeNoRoute,
		Message: "no condition matched and no default flow",
		Task:    g.Name(),
	}
}

// ParallelGateway forks to every output. With more than one input it
// also joins: a task arriving on one input waits until an instance of
// the gateway has arrived on every input, then the first of them
// continues and the others are merged into it.
type ParallelGateway struct {
	workflow.Base
}

// NewParallelGateway creates a parallel gateway.
func NewParallelGateway(name string) *ParallelGateway {
	return &ParallelGateway{Base: workflow.NewBase(name)}
}

// UpdateStateHook implements the join.
func (g *ParallelGateway) UpdateStateHook(m workflow.Mode, t *workflow.Task) error {
	if t.ApplyLoadTarget(m) {
		return nil
	}
	if !t.ParentFinished() {
		return nil
	}
	inputs := g.Inputs()
	if len(inputs) <= 1 {
		t.SetReady(m)
		return nil
	}

	arrived := make(map[workflow.TaskSpec]bool, len(inputs))
	var peers []*workflow.Task
	for _, o := range t.Workflow().LocalTasks(workflow.Future | workflow.Waiting | workflow.Ready) {
		if o.Spec() != t.Spec() || o.Parent() == nil || !o.ParentFinished() {
			continue
		}
		arrived[o.Parent().Spec()] = true
		if o != t {
			peers = append(peers, o)
		}
	}
	for _, in := range inputs {
		if !arrived[in] {
			t.SetWaiting(m)
			return nil
		}
	}
	for _, p := range peers {
		p.CompleteMerged()
	}
	t.SetReady(m)
	return nil
}
