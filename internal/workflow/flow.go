package workflow

// SequenceFlow is an identified, named edge between two task specs. Its id
// is the unit addressed by serialized workflow state.
type SequenceFlow struct {
	ID     string
	Name   string
	Target TaskSpec
}
