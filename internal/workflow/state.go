package workflow

import "strings"

// State is the lifecycle state of a Task. A task is in exactly one state at
// a time; Completed and Cancelled are terminal.
type State int

const (
	Future State = 1 << iota
	Waiting
	Ready
	Completed
	Cancelled
)

// StateMask selects several states at once, e.g. Ready|Waiting.
type StateMask = State

// AnyState matches every state.
const AnyState = Future | Waiting | Ready | Completed | Cancelled

// Active matches the states captured by State serialization.
const Active = Ready | Waiting

var stateNames = map[State]string{
	Future:    "FUTURE",
	Waiting:   "WAITING",
	Ready:     "READY",
	Completed: "COMPLETED",
	Cancelled: "CANCELLED",
}

// String returns the upper-case state name, or a '|' joined list for masks.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	var parts []string
	for _, st := range []State{Future, Waiting, Ready, Completed, Cancelled} {
		if s&st != 0 {
			parts = append(parts, stateNames[st])
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// IsFinished reports whether the state is terminal.
func (s State) IsFinished() bool {
	return s == Completed || s == Cancelled
}

// Matches reports whether s is one of the states in mask.
func (s State) Matches(mask StateMask) bool {
	return s&mask != 0
}
