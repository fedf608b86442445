// Package graph builds the dependency graph of a dialog and resolves
// triggers into ordered evaluation plans.
//
// Build runs once per dialog instance. It collects every provider's
// declared dependencies, resolves them against the References and Providers
// of the field tree, and rejects unknown targets, duplicate identities and
// cycles. The returned Graph is immutable and safe to share between
// concurrent passes.
//
// Resolve turns a Trigger into a Plan: the providers reachable from the
// trigger in dependency order, ties broken by declaration order.
package graph
