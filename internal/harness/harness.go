package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/procstate/internal/definition"
	"github.com/roach88/procstate/internal/script"
	"github.com/roach88/procstate/internal/store"
	"github.com/roach88/procstate/internal/tasks"
	"github.com/roach88/procstate/internal/workflow"
)

// errRoundTrip marks a save_restore whose restored workflow serialized
// differently from the saved one.
var errRoundTrip = errors.New("round trip changed state")

// Harness is the test execution engine for one scenario.
// It owns an in-memory store and the workflow being driven.
type Harness struct {
	store   *store.Store
	process *workflow.Process
	wf      *workflow.Workflow
	opts    []workflow.Option
	id      string
	seq     int64
	logger  *slog.Logger
}

// RunFile loads the scenario at path and runs it.
func RunFile(ctx context.Context, path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario)
	return scenario, result, err
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Load the definition and find the process
// 2. Start the workflow and run it to its first wait
// 3. Execute steps, validating each expect clause
// 4. Return result with pass/fail, trace, and errors
//
// A returned error means the scenario could not be set up. Failing steps
// and unmet expectations are reported in the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	reg, err := definition.LoadFile(scenario.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	p, ok := reg.Process(scenario.Process)
	if !ok {
		return nil, fmt.Errorf("process %q not found in %s (have %v)", scenario.Process, scenario.Definition, reg.Names())
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:   st,
		process: p,
		id:      scenario.Name,
		logger:  logger,
		opts:    []workflow.Option{workflow.WithLogger(logger)},
	}
	if scenario.MaxSteps > 0 {
		h.opts = append(h.opts, workflow.WithMaxEngineSteps(scenario.MaxSteps))
	}

	if err := st.CreateInstance(ctx, store.Instance{
		ID:         h.id,
		Process:    p.Name(),
		Definition: reg.Source(),
		Digest:     reg.Digest(),
		CreatedSeq: h.next(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	result := NewResult()
	if err := h.start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", p.Name(), err)
	}
	ev, err := h.observe(0, "start", nil)
	if err != nil {
		return nil, err
	}
	result.AddTrace(ev)
	h.check(result, ev, scenario.Start)

	for i, step := range scenario.Steps {
		n := i + 1
		matched, stepErr := h.execute(ctx, step)
		ev, err := h.observe(n, describeStep(step), matched)
		if err != nil {
			return nil, err
		}
		if stepErr != nil {
			ev.Error = errorCode(stepErr)
		}
		result.AddTrace(ev)
		h.check(result, ev, step.Expect)

		if stepErr != nil && (step.Expect == nil || step.Expect.Error == "") {
			result.AddError(fmt.Sprintf("step %d (%s): %v", n, ev.Action, stepErr))
			break
		}
	}
	return result, nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

func (h *Harness) start() error {
	w, err := workflow.New(h.process, h.opts...)
	if err != nil {
		return err
	}
	h.wf = w
	return w.DoEngineSteps()
}

func (h *Harness) execute(ctx context.Context, step Step) (*int, error) {
	switch step.Do {
	case StepEngineSteps:
		return nil, h.wf.DoEngineSteps()
	case StepComplete:
		return nil, h.complete(step)
	case StepMessage:
		matched, err := h.wf.AcceptMessage(workflow.Message{Name: step.Message, Payload: step.Payload})
		if err != nil {
			return &matched, err
		}
		return &matched, h.wf.DoEngineSteps()
	case StepSaveRestore:
		return nil, h.saveRestore(ctx)
	}
	return nil, fmt.Errorf("unknown step kind %q", step.Do)
}

func (h *Harness) complete(step Step) error {
	t, err := h.wf.FindReady(step.Task)
	if err != nil {
		return err
	}
	if step.Choice != "" {
		t.SetAttribute(tasks.ChoiceAttribute, step.Choice)
	}
	t.SetAttributes(step.Attributes)
	if err := h.wf.Complete(t); err != nil {
		return err
	}
	return h.wf.DoEngineSteps()
}

// saveRestore persists the workflow, reads it back and continues with the
// restored workflow.
func (h *Harness) saveRestore(ctx context.Context) error {
	before, err := h.wf.State()
	if err != nil {
		return err
	}
	attrs, err := h.wf.BranchAttributes()
	if err != nil {
		return err
	}
	if err := h.store.WriteSnapshot(ctx, store.Snapshot{
		InstanceID: h.id,
		Seq:        h.next(),
		Operation:  StepSaveRestore,
		State:      before,
		Attributes: attrs,
	}); err != nil {
		return err
	}

	snap, err := h.store.LatestSnapshot(ctx, h.id)
	if err != nil {
		return err
	}
	w, err := workflow.Restore(h.process, snap.State, h.opts...)
	if err != nil {
		return err
	}
	if err := w.ApplyBranchAttributes(snap.Attributes); err != nil {
		return err
	}
	after, err := w.State()
	if err != nil {
		return err
	}
	h.wf = w
	if after != before {
		return fmt.Errorf("%w: %q became %q", errRoundTrip, before, after)
	}
	h.logger.Debug("round trip", "state", after)
	return nil
}

func (h *Harness) observe(n int, action string, matched *int) (TraceEvent, error) {
	state, err := h.wf.State()
	if err != nil {
		return TraceEvent{}, fmt.Errorf("step %d: %w", n, err)
	}
	return TraceEvent{
		Step:    n,
		Action:  action,
		State:   state,
		Ready:   taskNames(h.wf.Tasks(workflow.Ready)),
		Waiting: taskNames(h.wf.Tasks(workflow.Waiting)),
		Matched: matched,
	}, nil
}

// check validates ev against exp and records every mismatch.
func (h *Harness) check(r *Result, ev TraceEvent, exp *Expect) {
	if exp == nil {
		return
	}
	where := fmt.Sprintf("step %d (%s)", ev.Step, ev.Action)

	if exp.Error != ev.Error {
		switch {
		case exp.Error == "":
			// Reported by Run with the full error text.
		case ev.Error == "":
			r.AddError(fmt.Sprintf("%s: expected error %s, step succeeded", where, exp.Error))
		default:
			r.AddError(fmt.Sprintf("%s: expected error %s, got %s", where, exp.Error, ev.Error))
		}
	}
	if exp.Ready != nil && !sameNames(exp.Ready, ev.Ready) {
		r.AddError(fmt.Sprintf("%s: ready = %v, expected %v", where, ev.Ready, exp.Ready))
	}
	if exp.Waiting != nil && !sameNames(exp.Waiting, ev.Waiting) {
		r.AddError(fmt.Sprintf("%s: waiting = %v, expected %v", where, ev.Waiting, exp.Waiting))
	}
	if exp.State != "" && exp.State != ev.State {
		r.AddError(fmt.Sprintf("%s: state = %q, expected %q", where, ev.State, exp.State))
	}
	if exp.Completed != nil && *exp.Completed != (ev.State == workflow.CompleteState) {
		r.AddError(fmt.Sprintf("%s: completed = %t, expected %t", where, !*exp.Completed, *exp.Completed))
	}
	if exp.Matched != nil {
		switch {
		case ev.Matched == nil:
			r.AddError(fmt.Sprintf("%s: matched is only reported for message steps", where))
		case *ev.Matched != *exp.Matched:
			r.AddError(fmt.Sprintf("%s: matched = %d, expected %d", where, *ev.Matched, *exp.Matched))
		}
	}
	if len(exp.Attributes) > 0 {
		h.checkAttributes(r, where, exp)
	}
}

func (h *Harness) checkAttributes(r *Result, where string, exp *Expect) {
	var task *workflow.Task
	for _, t := range h.wf.Tasks(workflow.Active) {
		if t.Name() == exp.AttributesOf {
			task = t
			break
		}
	}
	if task == nil {
		r.AddError(fmt.Sprintf("%s: no live task %s", where, exp.AttributesOf))
		return
	}
	for key, want := range exp.Attributes {
		got, ok := task.Attribute(key)
		if !ok {
			r.AddError(fmt.Sprintf("%s: %s has no attribute %q", where, exp.AttributesOf, key))
			continue
		}
		// YAML decodes integers as int, scripts produce int64.
		if fmt.Sprint(got) != fmt.Sprint(want) {
			r.AddError(fmt.Sprintf("%s: %s.%s = %v, expected %v", where, exp.AttributesOf, key, got, want))
		}
	}
}

func describeStep(step Step) string {
	switch step.Do {
	case StepComplete:
		return StepComplete + " " + step.Task
	case StepMessage:
		return StepMessage + " " + step.Message
	}
	return step.Do
}

func taskNames(ts []*workflow.Task) []string {
	names := make([]string, 0, len(ts))
	for _, t := range ts {
		names = append(names, t.Name())
	}
	slices.Sort(names)
	return names
}

func sameNames(want, got []string) bool {
	w := slices.Clone(want)
	slices.Sort(w)
	return slices.Equal(w, got)
}

// errorCode reduces err to a stable code for traces and expectations.
func errorCode(err error) string {
	var we *workflow.WorkflowError
	var se *script.Error
	switch {
	case errors.Is(err, errRoundTrip):
		return "ROUND_TRIP"
	case workflow.IsStepsExceeded(err):
		return "STEPS_EXCEEDED"
	case workflow.IsUnrecoverable(err):
		return "UNRECOVERABLE"
	case errors.As(err, &se):
		return "SCRIPT"
	case errors.As(err, &we):
		return string(we.Code)
	}
	return "ERROR"
}
