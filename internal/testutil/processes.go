// Package testutil provides process graphs and recorders shared by tests.
//
// Flow ids follow the "Flow_<from>_<to>" convention so serialized states
// in assertions are readable.
package testutil

import (
	"fmt"

	"github.com/roach88/procstate/internal/tasks"
	"github.com/roach88/procstate/internal/workflow"
)

// Graph builds a process for tests, panicking on wiring mistakes.
type Graph struct {
	p *workflow.Process
}

// NewGraph starts a process named name with start spec start.
func NewGraph(name string, start workflow.TaskSpec) *Graph {
	g := &Graph{p: workflow.NewProcess(name)}
	g.Add(start)
	must(g.p.SetStart(start))
	return g
}

// Add registers specs.
func (g *Graph) Add(specs ...workflow.TaskSpec) *Graph {
	must(g.p.Add(specs...))
	return g
}

// Flow connects from to to with id Flow_<from>_<to>, named after to.
func (g *Graph) Flow(from, to workflow.TaskSpec) *Graph {
	must(workflow.Connect(from, to, FlowID(from, to), to.Name()))
	return g
}

// FlowIf is Flow guarded by condition and named name.
func (g *Graph) FlowIf(from, to workflow.TaskSpec, name, condition string) *Graph {
	must(workflow.ConnectIf(from, to, FlowID(from, to), name, condition))
	return g
}

// Default connects a default flow named name.
func (g *Graph) Default(from *tasks.ExclusiveGateway, to workflow.TaskSpec, name string) *Graph {
	must(workflow.Connect(from, to, FlowID(from, to), name))
	must(from.SetDefaultFlow(FlowID(from, to)))
	return g
}

// Process returns the built graph.
func (g *Graph) Process() *workflow.Process { return g.p }

// FlowID returns the id Flow and FlowIf assign.
func FlowID(from, to workflow.TaskSpec) string {
	return fmt.Sprintf("Flow_%s_%s", from.Name(), to.Name())
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// LinearProcess is Start -> A -> B -> End where A is a script task and B
// a manual task.
func LinearProcess() *workflow.Process {
	start := tasks.NewStartEvent("Start")
	a := tasks.NewScriptTask("A", "visited = true")
	b := tasks.NewManualTask("B")
	end := tasks.NewEndEvent("End")
	return NewGraph("Linear", start).
		Add(a, b, end).
		Flow(start, a).Flow(a, b).Flow(b, end).
		Process()
}

// ChoiceProcess asks the caller a question and branches on the answer:
//
//	Start -> Ask -> Gate -Yes-> Work -> Done
//	                     -No--> Skipped   (default)
func ChoiceProcess() *workflow.Process {
	start := tasks.NewStartEvent("Start")
	ask := tasks.NewManualTask("Ask")
	gate := tasks.NewExclusiveGateway("Gate")
	work := tasks.NewManualTask("Work")
	done := tasks.NewEndEvent("Done")
	skipped := tasks.NewEndEvent("Skipped")
	return NewGraph("Choice", start).
		Add(ask, gate, work, done, skipped).
		Flow(start, ask).Flow(ask, gate).
		FlowIf(gate, work, "Yes", `choice == "Yes"`).
		Default(gate, skipped, "No").
		Flow(work, done).
		Process()
}

// LoopProcess repeats Work while the caller answers "Again":
//
//	Start -> Work -> Check -Again-> Work
//	                       -Done--> End   (default)
func LoopProcess() *workflow.Process {
	start := tasks.NewStartEvent("Start")
	work := tasks.NewManualTask("Work")
	check := tasks.NewExclusiveGateway("Check")
	end := tasks.NewEndEvent("End")
	return NewGraph("Loop", start).
		Add(work, check, end).
		Flow(start, work).Flow(work, check).
		FlowIf(check, work, "Again", `choice == "Again"`).
		Default(check, end, "Done").
		Process()
}

// ParallelMessageProcess forks three branches. A and B are manual tasks
// joined before End; Wait catches the "go" message independently.
//
//	Start -> Split -> A ----> Join -> End
//	              -> B ---->
//	              -> Wait -> Notified -> NotifiedEnd
func ParallelMessageProcess() *workflow.Process {
	start := tasks.NewStartEvent("Start")
	split := tasks.NewParallelGateway("Split")
	a := tasks.NewManualTask("A")
	b := tasks.NewManualTask("B")
	join := tasks.NewParallelGateway("Join")
	end := tasks.NewEndEvent("End")
	wait := tasks.NewMessageEvent("Wait", "go")
	notified := tasks.NewManualTask("Notified")
	notifiedEnd := tasks.NewEndEvent("NotifiedEnd")
	return NewGraph("ParallelMessage", start).
		Add(split, a, b, join, end, wait, notified, notifiedEnd).
		Flow(start, split).
		Flow(split, a).Flow(split, b).Flow(split, wait).
		Flow(a, join).Flow(b, join).Flow(join, end).
		Flow(wait, notified).Flow(notified, notifiedEnd).
		Process()
}

// SubprocessProcess calls a nested "Review" process:
//
//	Start -> Call[Review] -> After -> End
//	Review: ReviewStart -> Approve -> ReviewEnd
func SubprocessProcess() *workflow.Process {
	rs := tasks.NewStartEvent("ReviewStart")
	approve := tasks.NewManualTask("Approve")
	re := tasks.NewEndEvent("ReviewEnd")
	review := NewGraph("Review", rs).
		Add(approve, re).
		Flow(rs, approve).Flow(approve, re).
		Process()

	start := tasks.NewStartEvent("Start")
	call := tasks.NewCallActivity("Call", review)
	after := tasks.NewManualTask("After")
	end := tasks.NewEndEvent("End")
	return NewGraph("Outer", start).
		Add(call, after, end).
		Flow(start, call).Flow(call, after).Flow(after, end).
		Process()
}

// MessageSubprocessProcess calls a nested process whose start itself
// waits for the "signal" message:
//
//	Start -> Call[Signalled] -> End
//	Signalled: Await -> Handle -> SignalledEnd
func MessageSubprocessProcess() *workflow.Process {
	await := tasks.NewMessageEvent("Await", "signal")
	handle := tasks.NewManualTask("Handle")
	se := tasks.NewEndEvent("SignalledEnd")
	signalled := NewGraph("Signalled", await).
		Add(handle, se).
		Flow(await, handle).Flow(handle, se).
		Process()

	start := tasks.NewStartEvent("Start")
	call := tasks.NewCallActivity("Call", signalled)
	end := tasks.NewEndEvent("End")
	return NewGraph("MessageOuter", start).
		Add(call, end).
		Flow(start, call).Flow(call, end).
		Process()
}
