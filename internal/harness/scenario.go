package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario. It starts one instance of
// a process and drives it through a list of steps.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Definition is the path of the YAML or CUE process definition.
	// Relative paths are resolved against the scenario file location.
	Definition string `yaml:"definition"`

	// Process names the process to start.
	Process string `yaml:"process"`

	// MaxSteps overrides the engine step quota. Zero keeps the default.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Start, if set, validates the workflow right after it started.
	Start *Expect `yaml:"start,omitempty"`

	// Steps drive the instance in order.
	Steps []Step `yaml:"steps"`
}

// Step is one operation on the running instance.
type Step struct {
	// Do is the step kind: engine_steps, complete, message or save_restore.
	Do string `yaml:"do"`

	// Task names the READY task to complete (complete).
	Task string `yaml:"task,omitempty"`

	// Choice is stored as the "choice" attribute before completing (complete).
	Choice string `yaml:"choice,omitempty"`

	// Attributes are merged into the task before completing (complete).
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Message is the message name (message).
	Message string `yaml:"message,omitempty"`

	// Payload is copied into the attributes of matching tasks (message).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Expect validates the workflow after the step. If nil, the step only
	// has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the workflow after a step. Unset fields are not checked.
type Expect struct {
	// Ready lists the names of READY tasks, in any order.
	Ready []string `yaml:"ready,omitempty"`

	// Waiting lists the names of WAITING tasks, in any order.
	Waiting []string `yaml:"waiting,omitempty"`

	// State is the exact serialized state.
	State string `yaml:"state,omitempty"`

	// Completed checks whether no READY or WAITING task is left.
	Completed *bool `yaml:"completed,omitempty"`

	// Matched is the number of tasks that accepted a message.
	Matched *int `yaml:"matched,omitempty"`

	// Error is the expected error code, e.g. NOT_READY. A step that
	// expects an error fails if it succeeds.
	Error string `yaml:"error,omitempty"`

	// Attributes are expected on the named READY task (subset match).
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// AttributesOf names the task Attributes are checked on.
	AttributesOf string `yaml:"attributes_of,omitempty"`
}

// Step kind constants.
const (
	StepEngineSteps = "engine_steps"
	StepComplete    = "complete"
	StepMessage     = "message"
	StepSaveRestore = "save_restore"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML, resolving a relative definition
// path against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Definition != "" && !filepath.IsAbs(scenario.Definition) && basePath != "" {
		scenario.Definition = filepath.Join(basePath, scenario.Definition)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Definition == "" {
		return fmt.Errorf("definition is required")
	}
	if s.Process == "" {
		return fmt.Errorf("process is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Do {
	case StepEngineSteps, StepSaveRestore:
		if step.Task != "" || step.Message != "" {
			return fmt.Errorf("%s takes no task or message", step.Do)
		}
	case StepComplete:
		if step.Task == "" {
			return fmt.Errorf("complete requires task")
		}
	case StepMessage:
		if step.Message == "" {
			return fmt.Errorf("message requires message")
		}
	case "":
		return fmt.Errorf("do is required")
	default:
		return fmt.Errorf("unknown step kind %q (valid: %s, %s, %s, %s)",
			step.Do, StepEngineSteps, StepComplete, StepMessage, StepSaveRestore)
	}
	if step.Expect != nil && len(step.Expect.Attributes) > 0 && step.Expect.AttributesOf == "" {
		return fmt.Errorf("expect.attributes requires expect.attributes_of")
	}
	return nil
}
