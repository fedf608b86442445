package store

import "github.com/roach88/rdialog/internal/ir"

// Pass statuses.
const (
	// StatusOK marks a pass that completed, possibly with skipped branches.
	StatusOK = "ok"

	// StatusFatal marks a pass aborted by an unexpected provider failure.
	StatusFatal = "fatal"

	// StatusRejected marks a request that could not be resolved or read.
	StatusRejected = "rejected"
)

// PassRecord is the trace of one evaluation pass.
type PassRecord struct {
	ID         string
	Dialog     string
	GraphHash  string
	Seq        int64
	Trigger    ir.Trigger
	ValuesHash string
	Status     string

	// Error and FailedProvider are set for fatal and rejected passes.
	Error          string
	FailedProvider string

	// Computes is the number of provider compute calls in the pass.
	Computes int

	Updates []ir.UpdateResult
	Skips   []SkipRecord

	EngineVersion string
	IRVersion     string
}

// SkipRecord explains why a provider produced no update.
type SkipRecord struct {
	ProviderID string

	// Cause is the provider whose declared failure skipped this one.
	// Equal to ProviderID for the failing provider itself.
	Cause  string
	Reason string
	Failed bool
}
