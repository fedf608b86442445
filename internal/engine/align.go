package engine

import (
	"slices"

	"github.com/roach88/rdialog/internal/ir"
)

// series is one dependency's values, sorted by index tuple. depth is the
// length of every tuple in the series.
type series struct {
	depth  int
	values []ir.IndexedValue
}

func newSeries(depth int, values []ir.IndexedValue) series {
	sorted := slices.Clone(values)
	ir.SortIndexed(sorted)
	return series{depth: depth, values: sorted}
}

// instanceDepth is the length of the index tuples a provider computes at:
// its own nesting depth, capped by the deepest dependency. A provider
// nested deeper than all its dependencies cannot tell how many elements
// exist below them, so it computes once per dependency element and the
// result is broadcast by the caller.
func instanceDepth(nodeDepth int, deps []series) int {
	if len(deps) == 0 {
		return 0
	}
	deepest := 0
	for _, s := range deps {
		deepest = max(deepest, s.depth)
	}
	return min(nodeDepth, deepest)
}

// instanceTuples returns the distinct length-e prefixes present among the
// dependencies at least e deep, in lexicographic order. Depth 0 always has
// exactly one tuple: the empty one.
func instanceTuples(e int, deps []series) [][]int {
	if e == 0 {
		return [][]int{{}}
	}

	seen := make(map[string]bool)
	var out [][]int
	for _, s := range deps {
		if s.depth < e {
			continue
		}
		for _, iv := range s.values {
			prefix := iv.Indices[:e]
			key := ir.IndexKey(prefix)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, slices.Clone(prefix))
		}
	}
	slices.SortFunc(out, ir.CompareIndices)
	return out
}

// at returns the dependency value aligned to tuple t of length e.
//
// A dependency no deeper than e is broadcast: every tuple sharing its
// prefix sees the same value, and a missing element reads as null. A
// deeper dependency is aggregated: the tuple sees an array of every value
// under it, in index order.
func (s series) at(t []int, e int) ir.Value {
	if s.depth <= e {
		prefix := t[:s.depth]
		i, found := slices.BinarySearchFunc(s.values, prefix, func(iv ir.IndexedValue, target []int) int {
			return ir.CompareIndices(iv.Indices, target)
		})
		if !found {
			return ir.Null{}
		}
		return orNull(s.values[i].Value)
	}

	arr := ir.Array{}
	for _, iv := range s.values {
		if ir.HasPrefix(iv.Indices, t) {
			arr = append(arr, orNull(iv.Value))
		}
	}
	return arr
}

func orNull(v ir.Value) ir.Value {
	if v == nil {
		return ir.Null{}
	}
	return v
}
