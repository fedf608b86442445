package harness

import (
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/store"
)

// StepTrace is the recorded outcome of one step.
type StepTrace struct {
	Step    int
	Trigger ir.Trigger
	PassID  string
	Seq     int64
	Status  string
	Error   string

	Updates []ir.UpdateResult
	Skipped []store.SkipRecord

	// Computes counts compute-phase calls per provider. Empty for button
	// triggers and failed passes.
	Computes map[string]int

	// Instances counts the index tuples each provider produced.
	Instances map[string]int
}

// Object converts the step into an Object for canonical encoding.
func (s StepTrace) Object() ir.Object {
	updates := make(ir.Array, len(s.Updates))
	for i, u := range s.Updates {
		updates[i] = u.Object()
	}

	skipped := make(ir.Array, len(s.Skipped))
	for i, sk := range s.Skipped {
		obj := ir.Object{
			"provider": ir.String(sk.ProviderID),
			"cause":    ir.String(sk.Cause),
		}
		if sk.Failed {
			obj["reason"] = ir.String(sk.Reason)
		}
		skipped[i] = obj
	}

	computes := make(ir.Object, len(s.Computes))
	for id, n := range s.Computes {
		computes[id] = ir.Int(n)
	}

	obj := ir.Object{
		"step":     ir.Int(s.Step),
		"trigger":  ir.String(s.Trigger.String()),
		"pass_id":  ir.String(s.PassID),
		"seq":      ir.Int(s.Seq),
		"status":   ir.String(s.Status),
		"updates":  updates,
		"skipped":  skipped,
		"computes": computes,
	}
	if s.Error != "" {
		obj["error"] = ir.String(s.Error)
	}
	return obj
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	// Trace holds one entry per executed step.
	Trace []StepTrace

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// step returns the trace of step i, if it ran.
func (r *Result) step(i int) (StepTrace, bool) {
	if i < 0 || i >= len(r.Trace) {
		return StepTrace{}, false
	}
	return r.Trace[i], true
}
