package definition

// Task kinds accepted in definitions.
const (
	KindStart     = "start"
	KindEnd       = "end"
	KindManual    = "manual"
	KindUser      = "user"
	KindScript    = "script"
	KindExclusive = "exclusive"
	KindParallel  = "parallel"
	KindMessage   = "message"
	KindCall      = "call"
)

// Document is the decoded form of a definition file.
type Document struct {
	Processes []ProcessDef `yaml:"processes" json:"processes"`
}

// ProcessDef describes one process graph.
type ProcessDef struct {
	Name  string    `yaml:"name" json:"name"`
	Start string    `yaml:"start" json:"start"`
	Tasks []TaskDef `yaml:"tasks" json:"tasks"`
	Flows []FlowDef `yaml:"flows" json:"flows"`
}

// TaskDef describes one task spec. Which optional fields apply depends on
// Kind: Script for script tasks, Message for message events, Process for
// call activities and Default for exclusive gateways.
type TaskDef struct {
	Name    string `yaml:"name" json:"name"`
	Kind    string `yaml:"kind" json:"kind"`
	Script  string `yaml:"script,omitempty" json:"script,omitempty"`
	Message string `yaml:"message,omitempty" json:"message,omitempty"`
	Process string `yaml:"process,omitempty" json:"process,omitempty"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// FlowDef describes one sequence flow.
type FlowDef struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	From      string `yaml:"from" json:"from"`
	To        string `yaml:"to" json:"to"`
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`
}
