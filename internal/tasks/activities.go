package tasks

import (
	"fmt"

	"github.com/roach88/procstate/internal/workflow"
)

// ChoiceAttribute is the attribute a caller sets on a ManualTask to pick
// the branch an exclusive gateway follows.
const ChoiceAttribute = "choice"

// ManualTask is performed outside the engine. The scheduler leaves it
// READY until the caller completes it.
type ManualTask struct {
	workflow.Base
}

// NewManualTask creates a manual (user) task.
func NewManualTask(name string) *ManualTask {
	return &ManualTask{Base: workflow.NewBase(name)}
}

// IsEngineTask is false: the caller completes manual tasks.
func (s *ManualTask) IsEngineTask() bool { return false }

// Choices returns the sorted display names of the flows the caller can
// choose between. When the task leads straight into an exclusive gateway
// those are the gateway's flows. Unnamed flows are not choices.
func (s *ManualTask) Choices() []string {
	names := s.OutgoingNames()
	if outs := s.Outputs(); len(outs) == 1 {
		if gw, ok := outs[0].(*ExclusiveGateway); ok {
			names = gw.OutgoingNames()
		}
	}
	out := names[:0]
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// ScriptTask runs a script when it completes. The script's assignments
// become task attributes, inherited by the tasks that follow.
type ScriptTask struct {
	workflow.Base
	script string
}

// NewScriptTask creates a script task.
func NewScriptTask(name, script string) *ScriptTask {
	return &ScriptTask{Base: workflow.NewBase(name), script: script}
}

// Script returns the script source.
func (s *ScriptTask) Script() string { return s.script }

// OnCompleteHook runs the script before spawning the outputs.
func (s *ScriptTask) OnCompleteHook(m workflow.Mode, t *workflow.Task) error {
	if s.script != "" {
		if err := t.RunScript(s.script); err != nil {
			return err
		}
	}
	return s.Base.OnCompleteHook(m, t)
}

// CallActivity enters a nested process. Completing the task spawns the
// nested workflow; the outputs follow once that workflow completes.
type CallActivity struct {
	workflow.Base
	process *workflow.Process
}

// NewCallActivity creates a call activity for proc. proc may be bound
// later with Bind when definitions reference each other.
func NewCallActivity(name string, proc *workflow.Process) *CallActivity {
	return &CallActivity{Base: workflow.NewBase(name), process: proc}
}

// Bind sets the nested process.
func (s *CallActivity) Bind(proc *workflow.Process) { s.process = proc }

// Subprocess returns the nested process.
func (s *CallActivity) Subprocess() *workflow.Process { return s.process }

// OnCompleteHook enters the nested process instead of spawning outputs.
func (s *CallActivity) OnCompleteHook(m workflow.Mode, t *workflow.Task) error {
	if s.process == nil {
		return fmt.Errorf("call activity %s: no process bound", s.Name())
	}
	_, err := t.EnterSubprocess(m, s.process)
	return err
}
