package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/procstate/internal/workflow"
)

type observable interface {
	Observe(workflow.ObserverFunc)
}

// HookRecorder collects entering_* notifications as "STATE name" lines.
type HookRecorder struct {
	mu     sync.Mutex
	events []string
}

// RecordHooks attaches a recorder to every spec of p and of the processes
// it calls.
func RecordHooks(p *workflow.Process) *HookRecorder {
	r := &HookRecorder{}
	r.attach(p, make(map[*workflow.Process]bool))
	return r
}

func (r *HookRecorder) attach(p *workflow.Process, seen map[*workflow.Process]bool) {
	if seen[p] {
		return
	}
	seen[p] = true
	for _, s := range p.Specs() {
		if o, ok := s.(observable); ok {
			o.Observe(r.record)
		}
		if sub := s.Subprocess(); sub != nil {
			r.attach(sub, seen)
		}
	}
}

func (r *HookRecorder) record(state workflow.State, t *workflow.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%s %s", state, t.Name()))
}

// Events returns the recorded lines in order.
func (r *HookRecorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Reset forgets everything recorded so far.
func (r *HookRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
