package graph

import (
	"fmt"
	"slices"

	"github.com/roach88/rdialog/internal/provider"
)

// findCycles reports every provider cycle as a ConstructionError.
//
// The algorithm:
//  1. Build provider -> provider edges from the declared dependencies
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop; cycles through an
//     eager provider get their own code
//
// Nodes are visited in declaration order so the reported paths are stable.
func (g *Graph) findCycles() []error {
	edges := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		edges[n.ID] = []string{}
		for _, d := range n.Deps {
			if d.Kind == provider.DepProvider {
				edges[n.ID] = append(edges[n.ID], d.Target)
			}
		}
	}

	order := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		order[i] = n.ID
	}

	var errs []error
	for _, scc := range tarjanSCC(order, edges) {
		if len(scc) == 1 && !slices.Contains(edges[scc[0]], scc[0]) {
			continue
		}

		slices.SortFunc(scc, func(a, b string) int {
			return g.byID[a].Order - g.byID[b].Order
		})
		path := cyclePath(scc, edges)

		code := ErrDependencyCycle
		msg := fmt.Sprintf("dependency cycle: %s", cycleMessage(path))
		for _, id := range scc {
			if g.byID[id].Eager {
				code = ErrEagerCycle
				msg = fmt.Sprintf("eager provider %q participates in dependency cycle: %s", id, cycleMessage(path))
				break
			}
		}

		errs = append(errs, &ConstructionError{
			Code:     code,
			Message:  msg,
			Provider: scc[0],
			Path:     path,
		})
	}

	slices.SortStableFunc(errs, func(a, b error) int {
		return g.byID[a.(*ConstructionError).Provider].Order - g.byID[b.(*ConstructionError).Provider].Order
	})
	return errs
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Roots are visited in the given order.
func tarjanSCC(order []string, edges map[string][]string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath returns the shortest cycle through the first SCC member,
// following dependency edges: ["a", "b", "a"] reads "a depends on b
// depends on a".
func cyclePath(scc []string, edges map[string][]string) []string {
	start := scc[0]
	if slices.Contains(edges[start], start) {
		return []string{start, start}
	}

	members := make(map[string]bool, len(scc))
	for _, id := range scc {
		members[id] = true
	}

	prev := map[string]string{}
	queue := []string{start}
	seen := map[string]bool{start: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if !members[next] {
				continue
			}
			if next == start {
				path := []string{start}
				for n := cur; n != start; n = prev[n] {
					path = append(path, n)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if !seen[next] {
				seen[next] = true
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return append(slices.Clone(scc), start)
}
