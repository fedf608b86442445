package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// Build constructs the dependency graph of a field tree.
//
// Every provider's Init phase runs once against a collecting context and
// each declared dependency is resolved to a known Reference or Provider.
// All problems found are reported together as joined ConstructionErrors.
// Cycle analysis runs only when every dependency resolved.
func Build(tree *field.Tree) (*Graph, error) {
	if tree == nil {
		return nil, errors.New("graph: nil field tree")
	}

	g := &Graph{
		tree:           tree,
		byID:           make(map[string]*Node),
		refs:           make(map[string]*field.Field),
		refDependents:  make(map[string][]string),
		provDependents: make(map[string][]string),
	}

	var errs []error
	errs = append(errs, g.collectReferences(tree)...)
	errs = append(errs, g.collectProviders(tree)...)
	errs = append(errs, g.resolveDependencies()...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cycles := g.findCycles(); len(cycles) > 0 {
		return nil, errors.Join(cycles...)
	}

	for _, n := range g.nodes {
		if n.Eager {
			g.eager = append(g.eager, n.ID)
		}
	}

	hash, err := ir.GraphHash(g.descriptor())
	if err != nil {
		return nil, fmt.Errorf("graph: %w", err)
	}
	g.hash = hash
	return g, nil
}

func (g *Graph) collectReferences(tree *field.Tree) []error {
	var errs []error
	for _, f := range tree.Fields() {
		ref := f.Reference()
		if ref == "" {
			continue
		}
		if prev, ok := g.refs[ref]; ok {
			errs = append(errs, &ConstructionError{
				Code:      ErrDuplicateReference,
				Message:   fmt.Sprintf("reference %q is declared by %s and %s", ref, describe(prev), describe(f)),
				Reference: ref,
			})
			continue
		}
		g.refs[ref] = f
		g.refIDs = append(g.refIDs, ref)
	}
	return errs
}

func (g *Graph) collectProviders(tree *field.Tree) []error {
	var errs []error
	for _, a := range tree.Attachments() {
		id := a.ID()
		if id == "" {
			errs = append(errs, &ConstructionError{
				Code:    ErrInitFailed,
				Message: fmt.Sprintf("%s provider at %s has no identity", a.Target, describe(a.Field)),
			})
			continue
		}
		if _, ok := g.byID[id]; ok {
			errs = append(errs, &ConstructionError{
				Code:     ErrDuplicateProvider,
				Message:  fmt.Sprintf("provider %q is declared more than once", id),
				Provider: id,
			})
			continue
		}

		decl, err := provider.Collect(a.Provider)
		if err != nil {
			errs = append(errs, &ConstructionError{
				Code:     ErrInitFailed,
				Message:  err.Error(),
				Provider: id,
			})
			continue
		}

		n := &Node{
			ID:        id,
			Provider:  a.Provider,
			Target:    a.Target,
			Field:     a.Field,
			StateKind: a.StateKind,
			Deps:      decl.Deps,
			Eager:     decl.Eager,
			Depth:     a.Depth,
			Order:     len(g.nodes),
		}
		g.byID[id] = n
		g.nodes = append(g.nodes, n)
	}
	return errs
}

func (g *Graph) resolveDependencies() []error {
	var errs []error
	for _, n := range g.nodes {
		for _, d := range n.Deps {
			switch d.Kind {
			case provider.DepReference:
				if _, ok := g.refs[d.Target]; !ok {
					errs = append(errs, &ConstructionError{
						Code:      ErrUnknownReference,
						Message:   fmt.Sprintf("provider %q depends on unknown reference %q", n.ID, d.Target),
						Provider:  n.ID,
						Reference: d.Target,
					})
					continue
				}
				g.refDependents[d.Target] = appendUnique(g.refDependents[d.Target], n.ID)
			case provider.DepProvider:
				if _, ok := g.byID[d.Target]; !ok {
					errs = append(errs, &ConstructionError{
						Code:     ErrUnknownProvider,
						Message:  fmt.Sprintf("provider %q depends on unknown provider %q", n.ID, d.Target),
						Provider: n.ID,
					})
					continue
				}
				g.provDependents[d.Target] = appendUnique(g.provDependents[d.Target], n.ID)
			default:
				errs = append(errs, &ConstructionError{
					Code:     ErrInitFailed,
					Message:  fmt.Sprintf("provider %q declares a dependency of unknown kind %s", n.ID, d.Kind),
					Provider: n.ID,
				})
			}
		}
	}
	return errs
}

// descriptor is the canonical description of the topology that the graph
// hash is computed over.
func (g *Graph) descriptor() ir.Value {
	refs := make(ir.Array, 0, len(g.refIDs))
	for _, ref := range g.refIDs {
		refs = append(refs, ir.Object{
			"id":       ir.String(ref),
			"location": ir.String(g.refs[ref].Location()),
		})
	}

	nodes := make(ir.Array, 0, len(g.nodes))
	for _, n := range g.nodes {
		deps := make(ir.Array, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = ir.String(d.String())
		}
		nodes = append(nodes, ir.Object{
			"id":         ir.String(n.ID),
			"target":     ir.String(n.Target.String()),
			"location":   ir.String(n.Location()),
			"state_kind": ir.String(n.StateKind),
			"eager":      ir.Bool(n.Eager),
			"depth":      ir.Int(n.Depth),
			"deps":       deps,
		})
	}
	return ir.Object{"references": refs, "providers": nodes}
}

func describe(f *field.Field) string {
	if f == nil {
		return "dialog"
	}
	if loc := f.Location(); loc != "" {
		return "field " + loc
	}
	return "root field"
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// String renders the graph as one line per provider, used in diagnostics.
func (g *Graph) String() string {
	var sb strings.Builder
	for _, n := range g.nodes {
		sb.WriteString(n.ID)
		if n.Eager {
			sb.WriteString(" (eager)")
		}
		if len(n.Deps) > 0 {
			sb.WriteString(" <- ")
			parts := make([]string, len(n.Deps))
			for i, d := range n.Deps {
				parts[i] = d.String()
			}
			sb.WriteString(strings.Join(parts, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
