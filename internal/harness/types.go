package harness

// TraceEvent records the workflow after one step.
type TraceEvent struct {
	Step    int      `json:"step"`
	Action  string   `json:"action"` // "start", "complete Review", "message paid", ...
	State   string   `json:"state"`
	Ready   []string `json:"ready"`
	Waiting []string `json:"waiting"`
	Matched *int     `json:"matched,omitempty"`
	Error   string   `json:"error,omitempty"` // error code of a failed step
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and round trips match.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, the start included.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the serialized state after the last step.
	State string `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event and remembers its state as the latest.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
	if ev.Error == "" {
		r.State = ev.State
	}
}
