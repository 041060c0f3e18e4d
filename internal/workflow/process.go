package workflow

import (
	"errors"
	"fmt"
)

// Process is an immutable graph of task specs with a designated start.
// It is built once by a definition loader and only read afterwards.
type Process struct {
	name   string
	start  TaskSpec
	specs  []TaskSpec
	byName map[string]TaskSpec
}

// NewProcess creates an empty process graph.
func NewProcess(name string) *Process {
	return &Process{name: name, byName: make(map[string]TaskSpec)}
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Add registers specs with the process. Names must be unique, and specs
// with a nested process may not have ':' or ';' in their name.
func (p *Process) Add(specs ...TaskSpec) error {
	for _, s := range specs {
		if s.Subprocess() != nil {
			if err := CheckStateName("subprocess name", s.Name()); err != nil {
				return fmt.Errorf("process %s: %w", p.name, err)
			}
		}
		if _, dup := p.byName[s.Name()]; dup {
			return fmt.Errorf("process %s: duplicate task spec %q", p.name, s.Name())
		}
		p.byName[s.Name()] = s
		p.specs = append(p.specs, s)
	}
	return nil
}

// SetStart designates an already added spec as the start of the graph.
func (p *Process) SetStart(s TaskSpec) error {
	if p.byName[s.Name()] != s {
		return fmt.Errorf("process %s: start %q is not part of the process", p.name, s.Name())
	}
	p.start = s
	return nil
}

// Start returns the start spec.
func (p *Process) Start() TaskSpec { return p.start }

// Spec looks up a spec by name.
func (p *Process) Spec(name string) (TaskSpec, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// Specs returns all specs in the order they were added.
func (p *Process) Specs() []TaskSpec {
	out := make([]TaskSpec, len(p.specs))
	copy(out, p.specs)
	return out
}

// Validate checks that the graph is closed and has a start.
// Nested processes of subprocess specs are validated too.
func (p *Process) Validate() error {
	return p.validate(make(map[*Process]bool))
}

func (p *Process) validate(seen map[*Process]bool) error {
	if seen[p] {
		return nil
	}
	seen[p] = true

	if p.start == nil {
		return fmt.Errorf("process %s: no start spec", p.name)
	}
	var errs []error
	for _, s := range p.specs {
		for _, out := range s.Outputs() {
			if p.byName[out.Name()] != out {
				errs = append(errs, fmt.Errorf("process %s: %s connects to %s outside the process", p.name, s.Name(), out.Name()))
			}
		}
		if sub := s.Subprocess(); sub != nil {
			if err := CheckStateName("subprocess name", s.Name()); err != nil {
				errs = append(errs, fmt.Errorf("process %s: %w", p.name, err))
			}
			if err := sub.validate(seen); err != nil {
				errs = append(errs, fmt.Errorf("subprocess %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
