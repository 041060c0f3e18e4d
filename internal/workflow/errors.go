package workflow

import (
	"errors"
	"fmt"
)

// WorkflowError represents a failure detected while driving a workflow.
//
// Workflow errors are never retried by this package:
//   - READ_ONLY: a mutating entry point was called on a read-only workflow
//   - INTEGRITY: replay found a task tree that does not match its route
//   - MALFORMED_STATE: a serialized state string could not be parsed
//   - NO_ROUTE: a gateway found no outgoing flow to follow
//   - NOT_READY: a caller tried to complete a task that is not READY
type WorkflowError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Task names the task spec involved, if any.
	Task string
}

// ErrorCode categorizes workflow errors.
type ErrorCode string

const (
	ErrCodeReadOnly       ErrorCode = "READ_ONLY"
	ErrCodeIntegrity      ErrorCode = "INTEGRITY"
	ErrCodeMalformedState ErrorCode = "MALFORMED_STATE"
	ErrCodeNoRoute        ErrorCode = "NO_ROUTE"
	ErrCodeNotReady       ErrorCode = "NOT_READY"
)

// Error implements the error interface.
func (e *WorkflowError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("%s: %s (task=%s)", e.Code, e.Message, e.Task)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, task, format string, args ...any) *WorkflowError {
	return &WorkflowError{Code: code, Message: fmt.Sprintf(format, args...), Task: task}
}

// IsCode reports whether err is a WorkflowError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code == code
	}
	return false
}

// IsReadOnly reports whether err rejected a mutation of a read-only workflow.
func IsReadOnly(err error) bool { return IsCode(err, ErrCodeReadOnly) }

// IsIntegrity reports whether err is a replay integrity violation.
func IsIntegrity(err error) bool { return IsCode(err, ErrCodeIntegrity) }

// UnrecoverableChangeError is returned by Restore when a serialized branch
// can no longer be resolved against the process graph. The process
// definition changed incompatibly since the state was captured.
type UnrecoverableChangeError struct {
	// Branch is the serialized branch descriptor that failed to resolve.
	Branch string

	// Missing is the subprocess name or sequence flow id that was not found.
	Missing string
}

// Error implements the error interface.
func (e *UnrecoverableChangeError) Error() string {
	return fmt.Sprintf("no path found for route %q (missing %q)", e.Branch, e.Missing)
}

// IsUnrecoverable reports whether err is an UnrecoverableChangeError.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableChangeError
	return errors.As(err, &ue)
}

// StepsExceededError is returned when DoEngineSteps completes more automatic
// tasks than the workflow's quota allows. This catches process graphs whose
// automatic tasks loop without ever reaching a manual task or a wait.
type StepsExceededError struct {
	Workflow string // Name of the workflow that exceeded the quota
	Steps    int    // Number of steps taken
	Limit    int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("workflow %s exceeded max engine steps: %d steps > %d limit",
		e.Workflow, e.Steps, e.Limit)
}

// IsStepsExceeded reports whether err is a StepsExceededError.
func IsStepsExceeded(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
