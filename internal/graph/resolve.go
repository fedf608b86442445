package graph

import (
	"container/heap"
	"fmt"
	"slices"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// Step is one provider to evaluate in a pass.
type Step struct {
	Node *Node

	// Emit is false for support steps: providers the triggered closure
	// depends on but that the trigger did not reach. Their outputs feed
	// downstream steps but produce no Update Result. Internal providers
	// never emit either.
	Emit bool
}

// Plan is the ordered list of providers a trigger requires.
type Plan struct {
	Trigger ir.Trigger
	Steps   []Step

	// References lists every Reference some step reads, in declaration
	// order. The caller must supply values for all of them.
	References []string

	graph *Graph
}

// Graph returns the graph the plan was resolved against.
func (p *Plan) Graph() *Graph { return p.graph }

// IDs returns the provider ids of the plan in evaluation order.
func (p *Plan) IDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.Node.ID
	}
	return ids
}

// Resolve computes the providers a trigger requires, in dependency order.
//
// A value trigger selects every provider that transitively depends on the
// changed Reference. An open trigger selects every eager provider plus its
// transitive dependents. Upstream providers of the selection are added as
// support steps. Providers that are ready at the same time are ordered by
// declaration, so the plan is deterministic.
//
// Button triggers return ErrButtonTrigger.
func Resolve(g *Graph, t ir.Trigger) (*Plan, error) {
	var seeds []string
	switch t.Kind {
	case ir.TriggerValue:
		if !g.HasReference(t.Target) {
			return nil, &ResolutionError{Kind: string(t.Kind), Target: t.Target, Message: "unknown reference"}
		}
		seeds = g.refDependents[t.Target]
	case ir.TriggerOpen:
		seeds = g.eager
	case ir.TriggerButton:
		return nil, ErrButtonTrigger
	default:
		return nil, &ResolutionError{Kind: string(t.Kind), Target: t.Target, Message: "unknown trigger kind"}
	}

	closure := g.forwardClosure(seeds)
	selected := g.withSupport(closure)

	ordered, err := g.topoSort(selected)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Trigger: t, graph: g}
	reads := make(map[string]bool)
	for _, n := range ordered {
		plan.Steps = append(plan.Steps, Step{
			Node: n,
			Emit: closure[n.ID] && n.Target != field.TargetInternal,
		})
		for _, d := range n.Deps {
			if d.Kind == provider.DepReference {
				reads[d.Target] = true
			}
		}
	}
	for _, ref := range g.refIDs {
		if reads[ref] {
			plan.References = append(plan.References, ref)
		}
	}
	return plan, nil
}

// forwardClosure returns the seeds plus everything that transitively
// depends on them.
func (g *Graph) forwardClosure(seeds []string) map[string]bool {
	closure := make(map[string]bool)
	queue := slices.Clone(seeds)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if closure[id] {
			continue
		}
		closure[id] = true
		queue = append(queue, g.provDependents[id]...)
	}
	return closure
}

// withSupport extends a closure with every provider it transitively
// depends on.
func (g *Graph) withSupport(closure map[string]bool) map[string]bool {
	selected := make(map[string]bool, len(closure))
	var queue []string
	for id := range closure {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if selected[id] {
			continue
		}
		selected[id] = true
		for _, d := range g.byID[id].Deps {
			if d.Kind == provider.DepProvider {
				queue = append(queue, d.Target)
			}
		}
	}
	return selected
}

// topoSort orders the selected providers with Kahn's algorithm, taking the
// earliest-declared ready provider first.
func (g *Graph) topoSort(selected map[string]bool) ([]*Node, error) {
	pending := make(map[string]int, len(selected))
	ready := &orderHeap{}
	for _, n := range g.nodes {
		if !selected[n.ID] {
			continue
		}
		count := 0
		for _, d := range uniqueProviderDeps(n) {
			if selected[d] {
				count++
			}
		}
		pending[n.ID] = count
		if count == 0 {
			heap.Push(ready, n)
		}
	}

	out := make([]*Node, 0, len(selected))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(*Node)
		out = append(out, n)
		for _, dep := range g.provDependents[n.ID] {
			if !selected[dep] {
				continue
			}
			pending[dep]--
			if pending[dep] == 0 {
				heap.Push(ready, g.byID[dep])
			}
		}
	}

	if len(out) != len(selected) {
		// Build rejects cycles, so this only happens on a corrupted graph.
		return nil, fmt.Errorf("graph: %d providers could not be ordered", len(selected)-len(out))
	}
	return out, nil
}

// uniqueProviderDeps returns the distinct provider ids n depends on.
// provDependents is deduplicated, so in-degrees must be too.
func uniqueProviderDeps(n *Node) []string {
	var ids []string
	for _, d := range n.Deps {
		if d.Kind == provider.DepProvider && !slices.Contains(ids, d.Target) {
			ids = append(ids, d.Target)
		}
	}
	return ids
}

// orderHeap is a min-heap of nodes by declaration order.
type orderHeap []*Node

func (h orderHeap) Len() int           { return len(h) }
func (h orderHeap) Less(i, j int) bool { return h[i].Order < h[j].Order }
func (h orderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *orderHeap) Push(x any) { *h = append(*h, x.(*Node)) }

func (h *orderHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}
