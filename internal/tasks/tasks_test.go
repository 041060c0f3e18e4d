package tasks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/procstate/internal/script"
	"github.com/roach88/procstate/internal/workflow"
)

func build(t *testing.T, name string, start workflow.TaskSpec, rest ...workflow.TaskSpec) *workflow.Process {
	t.Helper()
	p := workflow.NewProcess(name)
	require.NoError(t, p.Add(start))
	require.NoError(t, p.Add(rest...))
	require.NoError(t, p.SetStart(start))
	return p
}

func connect(t *testing.T, from, to workflow.TaskSpec, name string) {
	t.Helper()
	require.NoError(t, workflow.Connect(from, to, from.Name()+"_"+to.Name(), name))
}

func run(t *testing.T, p *workflow.Process) *workflow.Workflow {
	t.Helper()
	w, err := workflow.New(p)
	require.NoError(t, err)
	require.NoError(t, w.DoEngineSteps())
	return w
}

func readyNames(w *workflow.Workflow) []string {
	var out []string
	for _, t := range w.ReadyTasks() {
		out = append(out, t.Name())
	}
	return out
}

func TestManualTask_Choices(t *testing.T) {
	ask := NewManualTask("Ask")
	gate := NewExclusiveGateway("Gate")
	connect(t, ask, gate, "")
	require.NoError(t, workflow.ConnectIf(gate, NewEndEvent("Y"), "g_y", "Yes", `choice == "Yes"`))
	require.NoError(t, workflow.Connect(gate, NewEndEvent("N"), "g_n", "No"))
	assert.Equal(t, []string{"No", "Yes"}, ask.Choices())
	assert.False(t, ask.IsEngineTask())

	plain := NewManualTask("Plain")
	connect(t, plain, NewEndEvent("Z"), "Zebra")
	connect(t, plain, NewEndEvent("A"), "Apple")
	assert.Equal(t, []string{"Apple", "Zebra"}, plain.Choices())
}

func choiceProcess(t *testing.T, withDefault bool) *workflow.Process {
	start := NewStartEvent("Start")
	ask := NewManualTask("Ask")
	gate := NewExclusiveGateway("Gate")
	yes := NewManualTask("Yes")
	no := NewManualTask("No")
	p := build(t, "choice", start, ask, gate, yes, no)
	connect(t, start, ask, "")
	connect(t, ask, gate, "")
	require.NoError(t, workflow.ConnectIf(gate, yes, "to_yes", "Yes", `choice == "Yes"`))
	if withDefault {
		require.NoError(t, workflow.Connect(gate, no, "to_no", "No"))
		require.NoError(t, gate.SetDefaultFlow("to_no"))
	} else {
		require.NoError(t, workflow.ConnectIf(gate, no, "to_no", "No", `choice == "No"`))
	}
	return p
}

func TestExclusiveGateway(t *testing.T) {
	tests := []struct {
		name        string
		withDefault bool
		choice      string
		want        []string
		noRoute     bool
	}{
		{"condition matches", true, "Yes", []string{"Yes"}, false},
		{"default flow", true, "Maybe", []string{"No"}, false},
		{"second condition", false, "No", []string{"No"}, false},
		{"no route", false, "Maybe", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := run(t, choiceProcess(t, tt.withDefault))
			ask, err := w.FindReady("Ask")
			require.NoError(t, err)
			ask.SetAttribute(ChoiceAttribute, tt.choice)
			require.NoError(t, w.Complete(ask))

			err = w.DoEngineSteps()
			if tt.noRoute {
				require.Error(t, err)
				assert.True(t, workflow.IsCode(err, workflow.ErrCodeNoRoute))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, readyNames(w))
		})
	}
}

func TestExclusiveGateway_ConditionErrorPropagates(t *testing.T) {
	w := run(t, choiceProcess(t, true))
	ask, err := w.FindReady("Ask")
	require.NoError(t, err)
	require.NoError(t, w.Complete(ask))

	// "choice" was never set, so the condition cannot be evaluated.
	err = w.DoEngineSteps()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gate")

	var se *script.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, `choice == "Yes"`, se.Expr)
}

func TestParallelGateway_SplitAndJoin(t *testing.T) {
	start := NewStartEvent("Start")
	split := NewParallelGateway("Split")
	a := NewManualTask("A")
	b := NewManualTask("B")
	c := NewManualTask("C")
	join := NewParallelGateway("Join")
	after := NewManualTask("After")
	p := build(t, "par", start, split, a, b, c, join, after)
	connect(t, start, split, "")
	for _, s := range []workflow.TaskSpec{a, b, c} {
		connect(t, split, s, "")
		connect(t, s, join, "")
	}
	connect(t, join, after, "")

	w := run(t, p)
	assert.Equal(t, []string{"A", "B", "C"}, readyNames(w))

	for i, name := range []string{"B", "C"} {
		task, err := w.FindReady(name)
		require.NoError(t, err)
		require.NoError(t, w.Complete(task))
		require.NoError(t, w.DoEngineSteps())
		assert.Len(t, w.WaitingTasks(), i+1, "join instances wait per arrived input")
	}

	task, err := w.FindReady("A")
	require.NoError(t, err)
	require.NoError(t, w.Complete(task))
	require.NoError(t, w.DoEngineSteps())

	assert.Empty(t, w.WaitingTasks(), "merged join instances are finished")
	assert.Equal(t, []string{"After"}, readyNames(w))
}

func TestMessageEvent(t *testing.T) {
	start := NewStartEvent("Start")
	catch := NewMessageEvent("Catch", "order.paid")
	after := NewManualTask("After")
	p := build(t, "msg", start, catch, after)
	connect(t, start, catch, "")
	connect(t, catch, after, "")
	assert.Equal(t, "order.paid", catch.Message())

	w := run(t, p)
	require.Len(t, w.WaitingTasks(), 1)

	require.NoError(t, w.RefreshWaitingTasks())
	require.Len(t, w.WaitingTasks(), 1, "refresh keeps it waiting")

	n, err := w.AcceptMessage(workflow.Message{Name: "order.paid", Payload: map[string]any{"amount": 12}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Catch"}, readyNames(w))

	require.NoError(t, w.RefreshWaitingTasks())
	require.NoError(t, w.DoEngineSteps())
	task, err := w.FindReady("After")
	require.NoError(t, err)
	amount, _ := task.Attribute("amount")
	assert.Equal(t, 12, amount)

	n, err = w.AcceptMessage(workflow.Message{Name: "order.paid"})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "nothing is waiting any more")
}

func TestScriptTask(t *testing.T) {
	start := NewStartEvent("Start")
	calc := NewScriptTask("Calc", "total = price * qty\nbig = total > 100")
	check := NewManualTask("Check")
	p := build(t, "script", start, calc, check)
	connect(t, start, calc, "")
	connect(t, calc, check, "")
	assert.Equal(t, "total = price * qty\nbig = total > 100", calc.Script())

	w, err := workflow.New(p)
	require.NoError(t, err)
	w.Root().SetAttributes(map[string]any{"price": 30, "qty": 4})
	require.NoError(t, w.DoEngineSteps())

	task, err := w.FindReady("Check")
	require.NoError(t, err)
	total, _ := task.Attribute("total")
	big, _ := task.Attribute("big")
	assert.Equal(t, int64(120), total)
	assert.Equal(t, true, big)
}

func TestScriptTask_ErrorStopsEngine(t *testing.T) {
	start := NewStartEvent("Start")
	bad := NewScriptTask("Bad", "x = undefined_name + 1")
	p := build(t, "bad", start, bad)
	connect(t, start, bad, "")

	w, err := workflow.New(p)
	require.NoError(t, err)
	err = w.DoEngineSteps()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad")
}

func TestCallActivity_Unbound(t *testing.T) {
	start := NewStartEvent("Start")
	call := NewCallActivity("Call", nil)
	p := build(t, "unbound", start, call)
	connect(t, start, call, "")
	assert.Nil(t, call.Subprocess())

	w, err := workflow.New(p)
	require.NoError(t, err)
	assert.Error(t, w.DoEngineSteps())
}

func TestCallActivity_Bind(t *testing.T) {
	subStart := NewStartEvent("SubStart")
	work := NewManualTask("Work")
	sub := build(t, "sub", subStart, work)
	connect(t, subStart, work, "")

	start := NewStartEvent("Start")
	call := NewCallActivity("Call", nil)
	call.Bind(sub)
	p := build(t, "bound", start, call)
	connect(t, start, call, "")

	w := run(t, p)
	task, err := w.FindReady("Work")
	require.NoError(t, err)
	assert.Equal(t, "Call", task.Workflow().Name())
	assert.Same(t, sub, task.Workflow().Process())
}
