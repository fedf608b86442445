package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// counted wraps a provider function and counts compute invocations.
type counted struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCounted() *counted {
	return &counted{calls: make(map[string]int)}
}

func (c *counted) fn(id string, compute func(in provider.Inputs) (ir.Value, error), deps ...provider.Dependency) *provider.Func {
	return &provider.Func{
		Name: id,
		Deps: deps,
		Fn: func(in provider.Inputs) (ir.Value, error) {
			c.mu.Lock()
			c.calls[id]++
			c.mu.Unlock()
			return compute(in)
		},
	}
}

func (c *counted) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func concat(suffix string) func(in provider.Inputs) (ir.Value, error) {
	return func(in provider.Inputs) (ir.Value, error) {
		s, _ := in.At(0).(ir.String)
		return s + ir.String(suffix), nil
	}
}

func mustGraph(t *testing.T, root *field.Field, internal ...provider.Provider) *graph.Graph {
	t.Helper()
	tree, err := field.NewTree(root, internal...)
	require.NoError(t, err)
	g, err := graph.Build(tree)
	require.NoError(t, err)
	return g
}

func mustPlan(t *testing.T, g *graph.Graph, trig ir.Trigger) *graph.Plan {
	t.Helper()
	plan, err := graph.Resolve(g, trig)
	require.NoError(t, err)
	return plan
}

func run(t *testing.T, g *graph.Graph, trig ir.Trigger, values ir.DependencyValues) (*Outcome, []ir.UpdateResult) {
	t.Helper()
	out, err := Evaluate(mustPlan(t, g, trig), values)
	require.NoError(t, err)
	return out, Assemble(out)
}

func fieldUpdate(location string, values ...ir.IndexedValue) ir.UpdateResult {
	return ir.UpdateResult{
		Destination: ir.Destination{Kind: ir.DestinationField, Location: location},
		Values:      values,
	}
}
