package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/rdialog/internal/compiler"
	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/logging"
	"github.com/roach88/rdialog/internal/store"
	"github.com/roach88/rdialog/internal/testutil"
)

// Harness replays scenario steps against one dialog instance and reads
// each pass back from its trace store.
type Harness struct {
	dialog *engine.Dialog
	store  *store.Store
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// A non-nil error means the scenario could not run at all; failed
// expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, logging.NewNop())
}

// RunWithLogger is Run with pass logging sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	loaded, errs := compiler.Load(scenario.Dialogs)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load dialogs: %w", errors.Join(errs...))
	}
	spec, ok := loaded.Dialog(scenario.Dialog)
	if !ok {
		return nil, fmt.Errorf("dialog %q not found in %s (have %s)",
			scenario.Dialog, scenario.Dialogs, strings.Join(loaded.Names(), ", "))
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	prefix := scenario.PassPrefix
	if prefix == "" {
		prefix = scenario.Name
	}
	d, err := compiler.Instantiate(spec,
		engine.WithRecorder(st),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithPassIDs(testutil.NewSequentialPassIDs(prefix)),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate dialog: %w", err)
	}

	h := &Harness{dialog: d, store: st, logger: logger}
	ctx := context.Background()

	result := NewResult()
	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		tr, err := h.runStep(ctx, i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, tr)

		for _, msg := range checkExpect(step.Expect, tr) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", i, tr.Trigger, msg))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, step *Step) (StepTrace, error) {
	req, err := step.Request()
	if err != nil {
		return StepTrace{}, err
	}

	resp, passErr := h.dialog.Trigger(ctx, req)

	rec, err := h.store.ReadPass(ctx, resp.PassID)
	if err != nil {
		return StepTrace{}, err
	}

	tr := StepTrace{
		Step:      i,
		Trigger:   req.Trigger(),
		PassID:    rec.ID,
		Seq:       rec.Seq,
		Status:    rec.Status,
		Error:     rec.Error,
		Updates:   resp.Updates,
		Skipped:   rec.Skips,
		Computes:  map[string]int{},
		Instances: map[string]int{},
	}

	// Replay the evaluation to observe per-provider compute counts.
	// Providers are pure, so the replay matches the pass.
	if passErr == nil && req.TriggerKind != ir.TriggerButton {
		plan, err := h.dialog.Plan(req.Trigger())
		if err != nil {
			return StepTrace{}, err
		}
		outcome, err := engine.Evaluate(plan, req.DependencyValues)
		if err != nil {
			return StepTrace{}, fmt.Errorf("replay: %w", err)
		}
		tr.Computes = outcome.Computes
		for _, e := range outcome.Entries {
			tr.Instances[e.Node.ID] = len(e.Values)
		}
	}

	h.logger.Debug("scenario step",
		"step", i,
		"trigger", tr.Trigger.String(),
		"status", tr.Status,
		"updates", len(tr.Updates),
	)
	return tr, nil
}

// checkExpect compares a step trace with its expectation.
func checkExpect(e *Expect, tr StepTrace) []string {
	var errs []string

	status := store.StatusOK
	if e != nil && e.Status != "" {
		status = e.Status
	}
	if tr.Status != status {
		msg := fmt.Sprintf("status = %s, want %s", tr.Status, status)
		if tr.Error != "" {
			msg += ": " + tr.Error
		}
		errs = append(errs, msg)
	}
	if e == nil {
		return errs
	}

	if e.Error != "" && !strings.Contains(tr.Error, e.Error) {
		errs = append(errs, fmt.Sprintf("error %q does not contain %q", tr.Error, e.Error))
	}

	if e.Updates != nil {
		errs = append(errs, checkUpdates(e.Updates, tr.Updates)...)
	}

	if e.Skipped != nil {
		got := make([]string, len(tr.Skipped))
		for i, s := range tr.Skipped {
			got[i] = s.ProviderID
		}
		if !slices.Equal(got, e.Skipped) {
			errs = append(errs, fmt.Sprintf("skipped = %v, want %v", got, e.Skipped))
		}
	}
	return errs
}

func checkUpdates(want []ExpectedUpdate, got []ir.UpdateResult) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("got %d updates %v, want %d", len(got), destinations(got), len(want))}
	}

	var errs []string
	for i := range want {
		w, g := &want[i], got[i]
		if g.Destination.String() != w.To {
			errs = append(errs, fmt.Sprintf("updates[%d]: destination = %s, want %s", i, g.Destination, w.To))
			continue
		}
		if g.State != w.State {
			errs = append(errs, fmt.Sprintf("updates[%d] %s: state = %q, want %q", i, w.To, g.State, w.State))
		}

		values, ok, err := w.expected()
		if err != nil {
			errs = append(errs, fmt.Sprintf("updates[%d] %s: %v", i, w.To, err))
			continue
		}
		if ok && !sameValues(values, g.Values) {
			errs = append(errs, fmt.Sprintf("updates[%d] %s: values = %s, want %s", i, w.To, formatValues(g.Values), formatValues(values)))
		}
	}
	return errs
}

func sameValues(a, b []ir.IndexedValue) bool {
	return slices.EqualFunc(a, b, func(x, y ir.IndexedValue) bool {
		return slices.Equal(x.Indices, y.Indices) && ir.Equal(x.Value, y.Value)
	})
}

func formatValues(values []ir.IndexedValue) string {
	arr := make(ir.Array, len(values))
	for i, v := range values {
		arr[i] = v.Object()
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return fmt.Sprintf("%v", values)
	}
	return string(data)
}

func destinations(updates []ir.UpdateResult) []string {
	out := make([]string, len(updates))
	for i, u := range updates {
		out[i] = u.Destination.String()
	}
	return out
}
