package definition

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// LoadError reports a file that could not be read or decoded.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// DefinitionError reports an inconsistent process definition.
type DefinitionError struct {
	Process string
	Element string // task name or flow id, if any
	Message string
}

func (e *DefinitionError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("process %s: %s: %s", e.Process, e.Element, e.Message)
	}
	return fmt.Sprintf("process %s: %s", e.Process, e.Message)
}

// IsDefinitionError reports whether err contains a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
