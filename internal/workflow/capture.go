package workflow

import (
	"fmt"
	"sort"
	"strings"
)

// CompleteState is the serialized state of a workflow with no READY or
// WAITING task left.
const CompleteState = "COMPLETE"

const (
	markerReady   = "R"
	markerWaiting = "W"

	// stateSeparators may not appear in flow ids or nested workflow names.
	stateSeparators = ":;"
)

// CheckStateName reports an error unless name can be written into a branch
// descriptor and read back unchanged.
func CheckStateName(kind, name string) error {
	if strings.ContainsAny(name, stateSeparators) {
		return fmt.Errorf("%s %q contains one of %q", kind, name, stateSeparators)
	}
	return nil
}

// State serializes which branches are alive and in what state.
//
// Each READY or WAITING task, nested ones included, becomes one branch
// descriptor "[name:]*flow-id:(R|W)": the id of the sequence flow its parent
// reached it by, qualified by the names of the nested workflows it lives
// in, outermost first. A task reached without a sequence flow, i.e. the
// start of a graph, has an empty flow id. Descriptors are sorted and
// joined with ';' so equivalent workflows serialize identically.
func (w *Workflow) State() (string, error) {
	active := w.Tasks(Active)
	if len(active) == 0 {
		return CompleteState, nil
	}
	branches := make([]string, 0, len(active))
	for _, t := range active {
		b, err := branchOf(t)
		if err != nil {
			return "", err
		}
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return strings.Join(branches, ";"), nil
}

func branchOf(t *Task) (string, error) {
	flowID := ""
	if t != t.workflow.root {
		flow, ok := t.parent.spec.FlowTo(t.spec)
		if !ok {
			return "", newError(ErrCodeIntegrity, t.spec.Name(),
				"no sequence flow from %s", t.parent.spec.Name())
		}
		flowID = flow.ID
	}
	marker := markerReady
	if t.state == Waiting {
		marker = markerWaiting
	}
	parts := []string{flowID, marker}
	for w := t.workflow; w.outer != nil; w = w.outer {
		parts = append([]string{w.name}, parts...)
	}
	return strings.Join(parts, ":"), nil
}

// Branch returns the descriptor State writes for t. It is only defined
// for READY and WAITING tasks.
func (t *Task) Branch() (string, error) {
	if !t.state.Matches(Active) {
		return "", newError(ErrCodeNotReady, t.spec.Name(), "task is %s, not a live branch", t.state)
	}
	return branchOf(t)
}

// BranchAttributes returns the attributes of every live task keyed by its
// branch descriptor. Tasks without attributes are left out. Attributes are
// not part of State, so a caller that persists state keeps these next to it.
func (w *Workflow) BranchAttributes() (map[string]map[string]any, error) {
	out := make(map[string]map[string]any)
	for _, t := range w.Tasks(Active) {
		b, err := branchOf(t)
		if err != nil {
			return nil, err
		}
		if a := t.Attributes(); len(a) > 0 {
			out[b] = a
		}
	}
	return out, nil
}

// ApplyBranchAttributes puts attributes captured by BranchAttributes back
// on the live tasks of a restored workflow. Unknown branches are ignored.
func (w *Workflow) ApplyBranchAttributes(attrs map[string]map[string]any) error {
	for _, t := range w.Tasks(Active) {
		b, err := branchOf(t)
		if err != nil {
			return err
		}
		if a, ok := attrs[b]; ok {
			t.SetAttributes(a)
		}
	}
	return nil
}
