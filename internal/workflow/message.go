package workflow

// AcceptMessage delivers msg to every WAITING task.
//
// Waiting tasks are refreshed and engine steps run to quiescence first, so
// the match happens against current state. Each spec decides whether the
// message matches and performs its own transition. Tasks made READY here
// are not advanced; call DoEngineSteps to propagate them.
//
// Returns the number of tasks that accepted the message.
func (w *Workflow) AcceptMessage(msg Message) (int, error) {
	if err := w.checkWritable(Live); err != nil {
		return 0, err
	}
	if err := w.refreshWaitingTasks(Live); err != nil {
		return 0, err
	}
	if err := w.doEngineSteps(Live); err != nil {
		return 0, err
	}

	matched := 0
	for _, t := range w.Tasks(Waiting) {
		if t.state != Waiting {
			continue
		}
		ok, err := t.spec.AcceptMessage(Live, t, msg)
		if err != nil {
			return matched, err
		}
		if ok {
			matched++
		}
	}
	w.logger.Info("message delivered", "workflow", w.name, "message", msg.Name, "matched", matched)
	return matched, nil
}
