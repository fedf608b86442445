package engine

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// Entry is the output of one successfully evaluated provider.
type Entry struct {
	Node *graph.Node

	// Emit is copied from the plan step.
	Emit bool

	// Depth is the length of every index tuple in Values.
	Depth int

	// Values holds one value per computed index tuple, in index order.
	Values []ir.IndexedValue
}

// Skip records a provider that produced no output because of a declared
// failure.
type Skip struct {
	ProviderID string

	// Cause is the provider whose declared failure skipped this one. For
	// the failing provider itself Cause equals ProviderID.
	Cause string

	// Reason is the failure reason, set on the failing provider only.
	Reason string

	// Failed is true for the provider that declared the failure.
	Failed bool
}

// Outcome is the raw result of evaluating a plan.
type Outcome struct {
	Plan *graph.Plan

	// Entries are the successful providers in evaluation order.
	Entries []Entry

	// Skipped are the failed and skipped providers in evaluation order.
	Skipped []Skip

	// Computes counts compute-phase invocations per provider.
	Computes map[string]int
}

// Values returns the memoized output of a provider in this pass.
func (o *Outcome) Values(id string) ([]ir.IndexedValue, bool) {
	for _, e := range o.Entries {
		if e.Node.ID == id {
			return e.Values, true
		}
	}
	return nil, false
}

// TotalComputes returns the number of compute-phase invocations.
func (o *Outcome) TotalComputes() int {
	total := 0
	for _, n := range o.Computes {
		total += n
	}
	return total
}

// Evaluate runs a plan against the caller-supplied Reference values.
//
// For each step, in order:
//  1. If a provider dependency failed or was skipped, the step is skipped
//  2. Dependency values are aligned to the step's index tuples
//  3. The compute phase runs once per tuple
//
// A declared failure in any tuple fails the whole provider: its other
// outputs are discarded and its dependents are skipped. Any other error
// or panic aborts the pass with an *EvaluationError.
func Evaluate(plan *graph.Plan, values ir.DependencyValues) (*Outcome, error) {
	if plan == nil {
		return nil, errors.New("evaluate: nil plan")
	}

	ev := &evaluator{
		graph:  plan.Graph(),
		values: values,
		refs:   make(map[string]series),
		memo:   make(map[string]series),
		failed: make(map[string]string),
	}
	out := &Outcome{Plan: plan, Computes: make(map[string]int)}

	for _, step := range plan.Steps {
		n := step.Node

		if cause, ok := ev.blockedBy(n); ok {
			ev.failed[n.ID] = cause
			out.Skipped = append(out.Skipped, Skip{ProviderID: n.ID, Cause: cause})
			continue
		}

		inputs, err := ev.inputs(n)
		if err != nil {
			return nil, err
		}

		e := instanceDepth(n.Depth, inputs)
		tuples := instanceTuples(e, inputs)
		results := make([]ir.IndexedValue, 0, len(tuples))

		var failure *provider.Failure
		for _, t := range tuples {
			args := make([]ir.Value, len(inputs))
			for i, s := range inputs {
				args[i] = s.at(t, e)
			}

			out.Computes[n.ID]++
			v, err := compute(n, t, args)
			if err != nil {
				if errors.As(err, &failure) {
					break
				}
				return nil, err
			}
			results = append(results, ir.IndexedValue{Indices: t, Value: v})
		}

		if failure != nil {
			ev.failed[n.ID] = n.ID
			out.Skipped = append(out.Skipped, Skip{
				ProviderID: n.ID,
				Cause:      n.ID,
				Reason:     failure.Reason,
				Failed:     true,
			})
			continue
		}

		ev.memo[n.ID] = series{depth: e, values: results}
		out.Entries = append(out.Entries, Entry{
			Node:   n,
			Emit:   step.Emit,
			Depth:  e,
			Values: results,
		})
	}

	return out, nil
}

// evaluator holds the per-pass state of Evaluate.
type evaluator struct {
	graph  *graph.Graph
	values ir.DependencyValues

	// refs caches sorted Reference series.
	refs map[string]series

	// memo holds provider outputs keyed by provider id.
	memo map[string]series

	// failed maps failed or skipped providers to the root cause.
	failed map[string]string
}

// blockedBy returns the root cause when a provider dependency of n failed
// or was skipped earlier in the pass.
func (ev *evaluator) blockedBy(n *graph.Node) (string, bool) {
	for _, d := range n.Deps {
		if d.Kind != provider.DepProvider {
			continue
		}
		if cause, ok := ev.failed[d.Target]; ok {
			return cause, true
		}
	}
	return "", false
}

// inputs resolves every declared dependency of n to a series.
func (ev *evaluator) inputs(n *graph.Node) ([]series, error) {
	out := make([]series, len(n.Deps))
	for i, d := range n.Deps {
		switch d.Kind {
		case provider.DepReference:
			s, err := ev.reference(n, d.Target)
			if err != nil {
				return nil, err
			}
			out[i] = s
		case provider.DepProvider:
			s, ok := ev.memo[d.Target]
			if !ok {
				return nil, &EvaluationError{
					Code:       ErrCodeProviderError,
					ProviderID: n.ID,
					Err:        fmt.Errorf("dependency %q was not evaluated before it", d.Target),
				}
			}
			out[i] = s
		}
	}
	return out, nil
}

func (ev *evaluator) reference(n *graph.Node, ref string) (series, error) {
	if s, ok := ev.refs[ref]; ok {
		return s, nil
	}

	raw, ok := ev.values[ref]
	if !ok {
		return series{}, &EvaluationError{
			Code:       ErrCodeMissingValue,
			ProviderID: n.ID,
			Reference:  ref,
			Err:        ErrMissingValue,
		}
	}

	depth := 0
	if f, ok := ev.graph.Reference(ref); ok {
		depth = f.Depth()
	}
	invalid := func(format string, args ...any) error {
		return &EvaluationError{
			Code:       ErrCodeInvalidInput,
			ProviderID: n.ID,
			Reference:  ref,
			Err:        fmt.Errorf(format, args...),
		}
	}
	for _, iv := range raw {
		if len(iv.Indices) != depth {
			return series{}, invalid("value at %v: expected %d indices", iv.Indices, depth)
		}
		if slices.ContainsFunc(iv.Indices, func(i int) bool { return i < 0 }) {
			return series{}, invalid("value at %v: negative index", iv.Indices)
		}
	}

	s := newSeries(depth, raw)
	for i := 1; i < len(s.values); i++ {
		if slices.Equal(s.values[i-1].Indices, s.values[i].Indices) {
			return series{}, invalid("more than one value at %v", s.values[i].Indices)
		}
	}
	ev.refs[ref] = s
	return s, nil
}

// compute runs one compute phase. Declared failures are returned as is;
// other errors and panics become *EvaluationError.
func compute(n *graph.Node, t []int, args []ir.Value) (v ir.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EvaluationError{
				Code:       ErrCodeProviderPanic,
				ProviderID: n.ID,
				Indices:    slices.Clone(t),
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
	}()

	v, err = n.Provider.Compute(provider.NewInputs(slices.Clone(t), args...))
	if err != nil {
		if provider.IsFailure(err) {
			return nil, err
		}
		return nil, &EvaluationError{
			Code:       ErrCodeProviderError,
			ProviderID: n.ID,
			Indices:    slices.Clone(t),
			Err:        err,
		}
	}
	return orNull(v), nil
}
