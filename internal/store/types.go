package store

import "errors"

// ErrNotFound is returned when an instance or snapshot does not exist.
var ErrNotFound = errors.New("not found")

// Instance is one started process.
type Instance struct {
	ID         string
	Process    string
	Definition string // path of the definition file
	Digest     string // SHA-256 of the definition file at start time
	CreatedSeq int64
}

// BranchAttributes maps a serialized branch descriptor to the attributes
// of the task on that branch.
type BranchAttributes map[string]map[string]any

// Snapshot is the persisted state of an instance after one operation.
type Snapshot struct {
	InstanceID string
	Seq        int64
	Operation  string // e.g. "start", "complete Review", "message reminder"
	State      string // serialized workflow state
	Attributes BranchAttributes
}
