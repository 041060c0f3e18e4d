package engine

import (
	"github.com/roach88/procstate/internal/workflow"
)

// TaskInfo describes one live task of an instance.
type TaskInfo struct {
	Name     string   `json:"name"`
	Branch   string   `json:"branch"`
	Workflow string   `json:"workflow"`
	Manual   bool     `json:"manual,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

// Status is the externally visible state of an instance.
type Status struct {
	ID        string     `json:"id"`
	Process   string     `json:"process"`
	Seq       int64      `json:"seq"`
	State     string     `json:"state"`
	Completed bool       `json:"completed"`
	Ready     []TaskInfo `json:"ready"`
	Waiting   []TaskInfo `json:"waiting"`
}

type chooser interface {
	Choices() []string
}

func describe(id string, seq int64, w *workflow.Workflow) (Status, error) {
	state, err := w.State()
	if err != nil {
		return Status{}, err
	}
	st := Status{
		ID:        id,
		Process:   w.Process().Name(),
		Seq:       seq,
		State:     state,
		Completed: state == workflow.CompleteState,
		Ready:     []TaskInfo{},
		Waiting:   []TaskInfo{},
	}
	for _, t := range w.Tasks(workflow.Active) {
		info, err := taskInfo(t)
		if err != nil {
			return Status{}, err
		}
		if t.State() == workflow.Ready {
			st.Ready = append(st.Ready, info)
		} else {
			st.Waiting = append(st.Waiting, info)
		}
	}
	return st, nil
}

func taskInfo(t *workflow.Task) (TaskInfo, error) {
	branch, err := t.Branch()
	if err != nil {
		return TaskInfo{}, err
	}
	info := TaskInfo{
		Name:     t.Name(),
		Branch:   branch,
		Workflow: t.Workflow().Name(),
		Manual:   !t.Spec().IsEngineTask(),
	}
	if c, ok := t.Spec().(chooser); ok && info.Manual {
		info.Choices = c.Choices()
	}
	return info, nil
}
