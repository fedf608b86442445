package testutil

import (
	"fmt"
	"sync/atomic"
)

// SequentialPassIDs generates "<prefix>-1", "<prefix>-2", ... so traces
// of repeated runs are byte-identical. Safe for concurrent use.
type SequentialPassIDs struct {
	prefix string
	n      atomic.Int64
}

// NewSequentialPassIDs creates a generator. An empty prefix means "pass".
func NewSequentialPassIDs(prefix string) *SequentialPassIDs {
	if prefix == "" {
		prefix = "pass"
	}
	return &SequentialPassIDs{prefix: prefix}
}

// Generate implements engine.PassIDGenerator.
func (g *SequentialPassIDs) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
