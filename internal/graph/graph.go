package graph

import (
	"slices"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/provider"
)

// Node is one provider in the dependency graph.
// Nodes are shared by every pass and must not be modified.
type Node struct {
	ID       string
	Provider provider.Provider
	Target   field.Target

	// Field is the owning field; nil for internal providers.
	Field     *field.Field
	StateKind string

	// Deps are the declared dependencies in declaration order.
	Deps  []provider.Dependency
	Eager bool

	// Depth is the number of array ancestors of the owning field.
	Depth int

	// Order is the declaration position, used to break ordering ties.
	Order int
}

// Location returns the owning field's location template, or "" for
// internal providers.
func (n *Node) Location() string {
	if n.Field == nil {
		return ""
	}
	return n.Field.Location()
}

// Graph is the immutable dependency graph of one dialog.
type Graph struct {
	tree *field.Tree

	nodes  []*Node
	byID   map[string]*Node
	refs   map[string]*field.Field
	refIDs []string

	// Dependents in declaration order, deduplicated.
	refDependents  map[string][]string
	provDependents map[string][]string

	eager []string
	hash  string
}

// Tree returns the field tree the graph was built from.
func (g *Graph) Tree() *field.Tree { return g.tree }

// Providers returns every provider node in declaration order.
func (g *Graph) Providers() []*Node { return slices.Clone(g.nodes) }

// Node looks up a provider node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// Dependencies returns the declared dependencies of a provider.
func (g *Graph) Dependencies(id string) []provider.Dependency {
	n, ok := g.byID[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.Deps)
}

// Dependents returns the providers that directly depend on a provider.
func (g *Graph) Dependents(id string) []string {
	return slices.Clone(g.provDependents[id])
}

// ReferenceDependents returns the providers that directly depend on a
// Reference.
func (g *Graph) ReferenceDependents(ref string) []string {
	return slices.Clone(g.refDependents[ref])
}

// HasReference reports whether some field declares ref.
func (g *Graph) HasReference(ref string) bool {
	_, ok := g.refs[ref]
	return ok
}

// Reference returns the field declaring ref.
func (g *Graph) Reference(ref string) (*field.Field, bool) {
	f, ok := g.refs[ref]
	return f, ok
}

// References returns every Reference in declaration order.
func (g *Graph) References() []string { return slices.Clone(g.refIDs) }

// Eager returns the ids of providers computed when the dialog opens.
func (g *Graph) Eager() []string { return slices.Clone(g.eager) }

// Depth returns the nesting depth of a dependency target.
func (g *Graph) Depth(d provider.Dependency) int {
	switch d.Kind {
	case provider.DepReference:
		if f, ok := g.refs[d.Target]; ok {
			return f.Depth()
		}
	case provider.DepProvider:
		if n, ok := g.byID[d.Target]; ok {
			return n.Depth
		}
	}
	return 0
}

// Hash returns the content hash of the graph's topology.
func (g *Graph) Hash() string { return g.hash }
