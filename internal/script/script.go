// Package script evaluates conditions and runs scripts against a task's
// attribute map, using CUE as the expression language.
//
// Attributes are encoded as a CUE struct and used as the scope of the
// expression, so `choice == "Yes"` or `count > 2` resolve attribute names
// directly. Scripts are newline-separated assignments:
//
//	total = price * quantity
//	approved = total < 1000
//
// Each assignment sees the attributes produced by the ones before it.
package script

import (
	"fmt"
	"maps"
	"regexp"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Error reports a failed evaluation. Line is 0 for plain expressions.
type Error struct {
	Expr string
	Line int
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("script line %d: %q: %v", e.Line, e.Expr, e.Err)
	}
	return fmt.Sprintf("expression %q: %v", e.Expr, e.Err)
}

// Unwrap returns the underlying CUE error.
func (e *Error) Unwrap() error { return e.Err }

// Engine evaluates CUE expressions. It is safe for concurrent use; calls
// are serialized on one CUE context.
type Engine struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// New creates an engine with its own CUE context.
func New() *Engine {
	return &Engine{ctx: cuecontext.New()}
}

// Evaluate computes expr with data as scope and returns the concrete
// result as a Go value: bool, int64, float64, string, []byte, nil, or a
// decoded list/struct.
func (e *Engine) Evaluate(expr string, data map[string]any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, err := e.evaluate(expr, data)
	if err != nil {
		return nil, &Error{Expr: expr, Err: err}
	}
	return v, nil
}

// Execute runs script and returns data updated with every assignment.
// The input map is not modified.
func (e *Engine) Execute(script string, data map[string]any) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]any, len(data))
	maps.Copy(out, data)
	for i, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		name, expr, ok := splitAssignment(line)
		if !ok {
			return nil, &Error{Expr: line, Line: i + 1, Err: fmt.Errorf("expected name = expression")}
		}
		v, err := e.evaluate(expr, out)
		if err != nil {
			return nil, &Error{Expr: expr, Line: i + 1, Err: err}
		}
		out[name] = v
	}
	return out, nil
}

func (e *Engine) evaluate(expr string, data map[string]any) (any, error) {
	if data == nil {
		data = map[string]any{}
	}
	scope := e.ctx.Encode(data)
	if err := scope.Err(); err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	v := e.ctx.CompileString(expr, cue.Scope(scope))
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}
	return toGo(v)
}

func toGo(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind:
		return v.Float64()
	case cue.StringKind:
		return v.String()
	case cue.BytesKind:
		return v.Bytes()
	case cue.NullKind:
		return nil, nil
	default:
		var out any
		if err := v.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// splitAssignment splits "name = expr". A leading "name ==" is a
// comparison, not an assignment.
func splitAssignment(line string) (name, expr string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx <= 0 || idx+1 >= len(line) || line[idx+1] == '=' {
		return "", "", false
	}
	name = strings.TrimSpace(line[:idx])
	if !identifier.MatchString(name) {
		return "", "", false
	}
	expr = strings.TrimSpace(line[idx+1:])
	if expr == "" {
		return "", "", false
	}
	return name, expr, true
}
