// Package harness runs conformance scenarios against compiled dialogs.
//
// A scenario loads the CUE dialogs in a directory, instantiates one of
// them and replays a list of triggers through it. Each step may state the
// updates it expects; assertions then check the whole run.
//
// # Scenario Format
//
//	name: job_basics
//	description: "Typing a name fills the title"
//	dialogs: ../dialogs
//	dialog: job
//	steps:
//	  - trigger: open
//	  - trigger: value
//	    target: name
//	    values: {name: "nightly"}
//	    expect:
//	      updates:
//	        - to: /title
//	          value: NIGHTLY
//	  - trigger: value
//	    target: step.cmd
//	    indexed:
//	      step.cmd:
//	        - {indices: [0], value: build}
//	    expect:
//	      skipped: [namePlaceholder]
//	assertions:
//	  - type: update_count
//	    step: 1
//	    count: 2
//	  - type: computed_once
//	    step: 2
//	    provider: steps.label
//
// Paths in `dialogs` are relative to the scenario file.
//
// # Assertion Types
//
//   - update_count: a step emitted exactly N updates
//   - update_order: destinations appear in this relative order within a step
//   - no_update: a step emitted nothing for a destination
//   - computed_once: every instance of a provider was computed exactly once
//
// Destinations are written the way ir.Destination prints them: the
// location template for fields, the provider id for UI state and
// "<location>:<handler>" for buttons.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory trace store, a reset logical clock and
// sequential pass ids, so the trace of a scenario is byte-identical across
// runs and can be compared against a golden file.
package harness
