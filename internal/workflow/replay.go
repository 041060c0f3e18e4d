package workflow

import "strings"

// Restore rebuilds the branches described by state, as produced by State,
// on a freshly created workflow. The whole replay runs Silent, so no
// observation hook fires. Restore is allowed on read-only workflows.
//
// "COMPLETE" cancels the workflow successfully instead.
func (w *Workflow) Restore(state string) error {
	if w.outer != nil {
		return newError(ErrCodeIntegrity, "", "restore must target the top-level workflow")
	}
	if w.root.IsFinished() || len(w.root.children) > 0 {
		return newError(ErrCodeIntegrity, "", "restore requires a freshly created workflow")
	}
	return w.restore(state)
}

func (w *Workflow) restore(state string) error {
	if state == CompleteState {
		return w.cancel(Silent, true)
	}
	if state == "" {
		return newError(ErrCodeMalformedState, "", "empty state")
	}

	b := newRouteBuilder(w.process)
	for _, branch := range strings.Split(state, ";") {
		if err := b.addBranch(branch); err != nil {
			return err
		}
	}
	w.logger.Debug("replaying route", "workflow", w.name, "route", b.route.dump())

	if err := replay(Silent, w.root, b.route); err != nil {
		return err
	}
	w.logger.Info("workflow restored", "workflow", w.name, "branches", strings.Count(state, ";")+1)
	return nil
}

// replay walks the route and the task tree in lock step. Interior tasks
// are completed silently with exactly the children the route names; a
// call activity whose nested start is on the route is completed normally,
// because entering a subprocess has to spawn the nested workflow. Leaves
// are forced into their captured state.
func replay(m Mode, t *Task, n *routeNode) error {
	if t.spec != n.spec {
		return newError(ErrCodeIntegrity, t.spec.Name(), "route expects %s", n.spec.Name())
	}

	if len(n.outgoing) == 0 {
		t.loadTarget = n.state
		if err := t.updateState(m); err != nil {
			return err
		}
		// Kinds that ignore the load target still end up in the captured state.
		t.ApplyLoadTarget(m)
		return nil
	}

	if !t.IsFinished() {
		if sub := t.spec.Subprocess(); sub != nil && n.outgoingFor(sub.Start()) != nil {
			if err := t.updateState(m); err != nil {
				return err
			}
			if t.state != Ready {
				return newError(ErrCodeIntegrity, t.spec.Name(), "subprocess entry is %s, not READY", t.state)
			}
			if err := t.complete(m); err != nil {
				return err
			}
		} else {
			t.completeSilently(n.outgoingSpecs())
		}
	}

	for _, out := range n.outgoing {
		var match *Task
		count := 0
		for _, c := range t.children {
			if c.spec == out.spec {
				match = c
				count++
			}
		}
		if count != 1 {
			return newError(ErrCodeIntegrity, t.spec.Name(),
				"expected exactly one child %s, found %d", out.spec.Name(), count)
		}
		if err := replay(m, match, out); err != nil {
			return err
		}
	}
	return nil
}
