package definition

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/procstate/internal/tasks"
	"github.com/roach88/procstate/internal/workflow"
)

// Registry holds the processes built from one definition file.
type Registry struct {
	processes map[string]*workflow.Process
	source    string
	digest    string
}

// Process looks up a process by name. The name is NFC normalized first.
func (r *Registry) Process(name string) (*workflow.Process, bool) {
	p, ok := r.processes[norm.NFC.String(name)]
	return p, ok
}

// Names returns the process names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.processes))
	for n := range r.processes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Source is the file the registry was loaded from, if any.
func (r *Registry) Source() string { return r.source }

// Digest is the hex SHA-256 of the source file, if any.
func (r *Registry) Digest() string { return r.digest }

// Build turns a decoded document into process graphs. All problems found
// are reported together.
func Build(doc *Document) (*Registry, error) {
	r := &Registry{processes: make(map[string]*workflow.Process)}
	if doc == nil || len(doc.Processes) == 0 {
		return nil, &DefinitionError{Message: "no processes defined"}
	}

	// Phase 1: create every process and its task specs.
	type callRef struct {
		call    *tasks.CallActivity
		process string
		target  string
	}
	var calls []callRef
	defs := make([]ProcessDef, len(doc.Processes))
	var errs []error
	for i, pd := range doc.Processes {
		pd = normalize(pd)
		defs[i] = pd
		if pd.Name == "" {
			errs = append(errs, &DefinitionError{Process: fmt.Sprintf("#%d", i), Message: "name is required"})
			continue
		}
		if _, dup := r.processes[pd.Name]; dup {
			errs = append(errs, &DefinitionError{Process: pd.Name, Message: "defined twice"})
			continue
		}
		p := workflow.NewProcess(pd.Name)
		for _, td := range pd.Tasks {
			spec, err := newSpec(td)
			if err != nil {
				errs = append(errs, &DefinitionError{Process: pd.Name, Element: td.Name, Message: err.Error()})
				continue
			}
			if err := p.Add(spec); err != nil {
				errs = append(errs, &DefinitionError{Process: pd.Name, Element: td.Name, Message: err.Error()})
				continue
			}
			if c, ok := spec.(*tasks.CallActivity); ok {
				calls = append(calls, callRef{call: c, process: pd.Name, target: td.Process})
			}
		}
		r.processes[pd.Name] = p
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Phase 2: connect flows, bind call activities, validate.
	for _, pd := range defs {
		p := r.processes[pd.Name]
		errs = append(errs, connect(p, pd)...)
	}
	for _, ref := range calls {
		sub, ok := r.processes[ref.target]
		if !ok {
			errs = append(errs, &DefinitionError{Process: ref.process, Element: ref.call.Name(), Message: fmt.Sprintf("calls unknown process %q", ref.target)})
			continue
		}
		ref.call.Bind(sub)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, pd := range defs {
		if err := r.processes[pd.Name].Validate(); err != nil {
			errs = append(errs, &DefinitionError{Process: pd.Name, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func newSpec(td TaskDef) (workflow.TaskSpec, error) {
	if td.Name == "" {
		return nil, fmt.Errorf("task name is required")
	}
	switch td.Kind {
	case KindStart:
		return tasks.NewStartEvent(td.Name), nil
	case KindEnd:
		return tasks.NewEndEvent(td.Name), nil
	case KindManual, KindUser:
		return tasks.NewManualTask(td.Name), nil
	case KindScript:
		return tasks.NewScriptTask(td.Name, td.Script), nil
	case KindExclusive:
		return tasks.NewExclusiveGateway(td.Name), nil
	case KindParallel:
		return tasks.NewParallelGateway(td.Name), nil
	case KindMessage:
		if td.Message == "" {
			return nil, fmt.Errorf("message event needs a message name")
		}
		return tasks.NewMessageEvent(td.Name, td.Message), nil
	case KindCall:
		if td.Process == "" {
			return nil, fmt.Errorf("call activity needs a process")
		}
		// Call activity names qualify the branches of their nested workflow.
		if err := workflow.CheckStateName("call activity name", td.Name); err != nil {
			return nil, err
		}
		return tasks.NewCallActivity(td.Name, nil), nil
	default:
		return nil, fmt.Errorf("unknown task kind %q", td.Kind)
	}
}

func connect(p *workflow.Process, pd ProcessDef) []error {
	var errs []error
	fail := func(element, format string, args ...any) {
		errs = append(errs, &DefinitionError{Process: pd.Name, Element: element, Message: fmt.Sprintf(format, args...)})
	}

	start, ok := p.Spec(pd.Start)
	if !ok {
		fail("", "start task %q not found", pd.Start)
	} else if err := p.SetStart(start); err != nil {
		fail(pd.Start, "%v", err)
	}

	for _, fd := range pd.Flows {
		if fd.ID == "" {
			fail("", "flow from %s to %s has no id", fd.From, fd.To)
			continue
		}
		if err := workflow.CheckStateName("flow id", fd.ID); err != nil {
			fail(fd.ID, "%v", err)
			continue
		}
		from, ok := p.Spec(fd.From)
		if !ok {
			fail(fd.ID, "unknown source task %q", fd.From)
			continue
		}
		to, ok := p.Spec(fd.To)
		if !ok {
			fail(fd.ID, "unknown target task %q", fd.To)
			continue
		}
		var err error
		if fd.Condition != "" {
			err = workflow.ConnectIf(from, to, fd.ID, fd.Name, fd.Condition)
		} else {
			err = workflow.Connect(from, to, fd.ID, fd.Name)
		}
		if err != nil {
			fail(fd.ID, "%v", err)
		}
	}

	for _, td := range pd.Tasks {
		if td.Default == "" {
			continue
		}
		spec, ok := p.Spec(td.Name)
		if !ok {
			continue
		}
		gw, ok := spec.(*tasks.ExclusiveGateway)
		if !ok {
			fail(td.Name, "only exclusive gateways have a default flow")
			continue
		}
		if err := gw.SetDefaultFlow(td.Default); err != nil {
			fail(td.Name, "%v", err)
		}
	}
	return errs
}

func normalize(pd ProcessDef) ProcessDef {
	nfc := norm.NFC.String
	out := ProcessDef{
		Name:  nfc(pd.Name),
		Start: nfc(pd.Start),
		Tasks: make([]TaskDef, len(pd.Tasks)),
		Flows: make([]FlowDef, len(pd.Flows)),
	}
	for i, td := range pd.Tasks {
		td.Name = nfc(td.Name)
		td.Message = nfc(td.Message)
		td.Process = nfc(td.Process)
		td.Default = nfc(td.Default)
		out.Tasks[i] = td
	}
	for i, fd := range pd.Flows {
		fd.ID = nfc(fd.ID)
		fd.Name = nfc(fd.Name)
		fd.From = nfc(fd.From)
		fd.To = nfc(fd.To)
		out.Flows[i] = fd
	}
	return out
}
