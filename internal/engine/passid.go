package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PassIDGenerator produces the identity stamped on every pass.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type PassIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 pass ids, so trace rows
// created by different processes still sort roughly by creation time.
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out predetermined pass ids for golden traces.
// Once the list is exhausted it falls back to "<last>-<n>" so a scenario
// with more passes than ids still produces stable output.
type FixedGenerator struct {
	mu    sync.Mutex
	ids   []string
	next  int
	extra int
}

// NewFixedGenerator creates a generator returning ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next < len(g.ids) {
		id := g.ids[g.next]
		g.next++
		return id
	}

	g.extra++
	base := "pass"
	if len(g.ids) > 0 {
		base = g.ids[len(g.ids)-1]
	}
	return fmt.Sprintf("%s-%d", base, g.extra)
}
