// Package engine evaluates dependency-graph plans and composes dialogs.
//
// ARCHITECTURE:
//
// A pass is one trigger turned into an ordered list of Update Results:
//  1. graph.Resolve selects and orders the providers the trigger requires
//  2. Evaluate runs them in order, feeding each its index-aligned inputs
//  3. Assemble converts successful outputs into addressed Update Results
//
// Dialog composes the three per request and adds button handlers, pass
// ids, metrics and trace recording.
//
// Evaluation is single-threaded and synchronous within a pass. Providers
// are pure in-memory functions; no step blocks on I/O and there is no
// cancellation inside a pass. Concurrent passes share only the immutable
// graph.
//
// FAILURE POLICY:
//
// A declared failure (provider.Fail) skips the failing provider and every
// planned provider downstream of it. Independent branches continue and the
// pass still succeeds. Any other error, or a panic, aborts the pass with an
// EvaluationError naming the provider; no partial results are returned.
//
// DETERMINISM:
//
// For a fixed graph, trigger and dependency values a pass always produces
// the same Update Results in the same order. Index tuples are processed in
// lexicographic order and ties between ready providers follow declaration
// order.
package engine
