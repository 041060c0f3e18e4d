package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/procstate/internal/workflow"
)

// RuntimeError represents an error detected while driving an instance.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Instance identifies the affected instance, if any.
	Instance string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownProcess indicates the definition has no such process.
	ErrCodeUnknownProcess RuntimeErrorCode = "UNKNOWN_PROCESS"

	// ErrCodeUnknownInstance indicates the store has no such instance.
	ErrCodeUnknownInstance RuntimeErrorCode = "UNKNOWN_INSTANCE"

	// ErrCodeDefinitionChanged indicates the stored state no longer fits
	// the definition file.
	ErrCodeDefinitionChanged RuntimeErrorCode = "DEFINITION_CHANGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Instance != "" {
		return fmt.Sprintf("%s: %s (instance=%s)", e.Code, e.Message, e.Instance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownInstance reports whether err names a missing instance.
func IsUnknownInstance(err error) bool { return isCode(err, ErrCodeUnknownInstance) }

// IsUnknownProcess reports whether err names a missing process.
func IsUnknownProcess(err error) bool { return isCode(err, ErrCodeUnknownProcess) }

// IsDefinitionChanged reports whether a stored state could not be
// restored against the current definition.
func IsDefinitionChanged(err error) bool { return isCode(err, ErrCodeDefinitionChanged) }

// IsQuotaError reports whether an operation stopped because the engine
// step quota was exceeded.
func IsQuotaError(err error) bool {
	return workflow.IsStepsExceeded(err)
}
