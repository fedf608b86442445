// Package provider defines the two-phase computation units of a dialog.
//
// A Provider first declares what it depends on (Init), then computes an
// output from the values the engine resolved for those dependencies
// (Compute). Dependencies are either the current value behind a Reference or
// the most recent output of another Provider.
//
// Init runs exactly once, when the dependency graph is built. Compute runs
// once per index tuple per evaluation pass and must be a pure, synchronous,
// in-memory function.
//
// A Compute that cannot produce a value right now returns a *Failure (see
// Fail). Any other error is treated as unexpected and aborts the pass.
package provider
