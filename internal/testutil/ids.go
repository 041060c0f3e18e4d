package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates instance ids "<prefix>-0001", "<prefix>-0002", ...
//
// This enables deterministic test execution and golden output comparison.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "inst".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "inst"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
