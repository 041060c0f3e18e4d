package workflow

// DoEngineSteps completes READY engine tasks until none is left.
//
// This is a fixed-point loop: completing one task may make siblings or
// children READY, so the READY set is recomputed after every pass. Manual
// tasks are left for the caller; the scheduler never blocks.
func (w *Workflow) DoEngineSteps() error {
	if err := w.checkWritable(Live); err != nil {
		return err
	}
	return w.doEngineSteps(Live)
}

func (w *Workflow) doEngineSteps(m Mode) error {
	steps := 0
	for {
		ready := w.engineTasks()
		if len(ready) == 0 {
			return nil
		}
		for _, t := range ready {
			// An earlier completion in this pass may have moved t on,
			// e.g. a join merging its sibling instances.
			if t.state != Ready {
				continue
			}
			steps++
			if w.maxSteps > 0 && steps > w.maxSteps {
				w.logger.Error("max engine steps exceeded",
					"workflow", w.name,
					"steps", steps,
					"limit", w.maxSteps,
				)
				return &StepsExceededError{Workflow: w.name, Steps: steps, Limit: w.maxSteps}
			}
			if err := t.complete(m); err != nil {
				return err
			}
		}
	}
}

func (w *Workflow) engineTasks() []*Task {
	var out []*Task
	for _, t := range w.Tasks(Ready) {
		if t.spec.IsEngineTask() {
			out = append(out, t)
		}
	}
	return out
}

// RefreshWaitingTasks lets every WAITING task re-evaluate its state.
func (w *Workflow) RefreshWaitingTasks() error {
	if err := w.checkWritable(Live); err != nil {
		return err
	}
	return w.refreshWaitingTasks(Live)
}

func (w *Workflow) refreshWaitingTasks(m Mode) error {
	for _, t := range w.Tasks(Waiting) {
		if err := t.updateState(m); err != nil {
			return err
		}
	}
	return nil
}

// ReadyUserTasks returns READY tasks that wait for the caller.
func (w *Workflow) ReadyUserTasks() []*Task {
	var out []*Task
	for _, t := range w.Tasks(Ready) {
		if !t.spec.IsEngineTask() {
			out = append(out, t)
		}
	}
	return out
}

// ReadyTasks returns every READY task.
func (w *Workflow) ReadyTasks() []*Task { return w.Tasks(Ready) }

// WaitingTasks returns every WAITING task.
func (w *Workflow) WaitingTasks() []*Task { return w.Tasks(Waiting) }

// Complete completes a READY task on behalf of the caller, typically a
// manual task after its attributes were filled in.
func (w *Workflow) Complete(t *Task) error {
	if err := w.checkWritable(Live); err != nil {
		return err
	}
	if t == nil || t.workflow.top() != w.top() {
		return newError(ErrCodeIntegrity, "", "task does not belong to workflow %s", w.name)
	}
	if t.state != Ready {
		return newError(ErrCodeNotReady, t.spec.Name(), "task is %s", t.state)
	}
	return t.complete(Live)
}

// FindReady returns the single READY task of the named spec.
func (w *Workflow) FindReady(name string) (*Task, error) {
	var found []*Task
	for _, t := range w.Tasks(Ready) {
		if t.spec.Name() == name {
			found = append(found, t)
		}
	}
	switch len(found) {
	case 0:
		return nil, newError(ErrCodeNotReady, name, "no READY task")
	case 1:
		return found[0], nil
	default:
		return nil, newError(ErrCodeIntegrity, name, "%d READY tasks share the name", len(found))
	}
}
