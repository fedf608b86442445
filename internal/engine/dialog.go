package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/rdialog/internal/button"
	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/store"
)

// Recorder receives the trace of every pass. Implemented by *store.Store.
type Recorder interface {
	WritePass(ctx context.Context, p store.PassRecord) error
}

// Dialog is one dialog instance: the dependency graph built once from its
// field tree, plus the button handlers it owns.
//
// Thread-safety model:
//   - Trigger(): safe from any goroutine; passes share only the
//     immutable graph
//   - Options must not be changed after NewDialog returns
type Dialog struct {
	name     string
	graph    *graph.Graph
	buttons  *button.Registry
	fields   map[string]*field.Field // button handler id -> field
	metrics  *Metrics
	recorder Recorder
	passIDs  PassIDGenerator
	clock    Sequencer
	logger   *slog.Logger
}

// Option configures a Dialog.
type Option func(*Dialog)

// WithButtons sets the dialog's button handler registry.
func WithButtons(r *button.Registry) Option {
	return func(d *Dialog) {
		d.buttons = r
	}
}

// WithMetrics reports passes to m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dialog) {
		d.metrics = m
	}
}

// WithRecorder records the trace of every pass.
func WithRecorder(r Recorder) Option {
	return func(d *Dialog) {
		d.recorder = r
	}
}

// WithPassIDs sets the pass id generator. Default: UUIDv7Generator.
func WithPassIDs(g PassIDGenerator) Option {
	return func(d *Dialog) {
		d.passIDs = g
	}
}

// WithClock sets the logical clock that numbers passes.
func WithClock(c Sequencer) Option {
	return func(d *Dialog) {
		d.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dialog) {
		d.logger = l
	}
}

// NewDialog builds the dependency graph of tree and checks that every
// button field has a registered handler. It fails with the joined
// graph.ConstructionErrors when the graph cannot be built; the dialog
// cannot open in that case.
func NewDialog(name string, tree *field.Tree, opts ...Option) (*Dialog, error) {
	g, err := graph.Build(tree)
	if err != nil {
		return nil, fmt.Errorf("dialog %q: %w", name, err)
	}

	d := &Dialog{
		name:    name,
		graph:   g,
		buttons: button.NewRegistry(),
		fields:  make(map[string]*field.Field),
		passIDs: UUIDv7Generator{},
		clock:   NewClock(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	for _, f := range tree.Buttons() {
		id := f.Button()
		if f.Repeated() {
			return nil, fmt.Errorf("dialog %q: field %s: %w: %q", name, f.Location(), button.ErrRepeatedButton, id)
		}
		if !d.buttons.Has(id) {
			return nil, fmt.Errorf("dialog %q: field %s: %w: %q", name, f.Location(), button.ErrUnknownHandler, id)
		}
		if _, dup := d.fields[id]; dup {
			return nil, fmt.Errorf("dialog %q: %w: %q is attached to more than one field", name, button.ErrDuplicateHandler, id)
		}
		d.fields[id] = f
	}

	d.logger.Debug("dialog built",
		"dialog", name,
		"providers", len(g.Providers()),
		"references", len(g.References()),
		"buttons", len(d.fields),
		"graph_hash", g.Hash(),
	)
	return d, nil
}

// Name returns the dialog name.
func (d *Dialog) Name() string { return d.name }

// Graph returns the dialog's dependency graph.
func (d *Dialog) Graph() *graph.Graph { return d.graph }

// Plan resolves a trigger without evaluating it.
func (d *Dialog) Plan(t ir.Trigger) (*graph.Plan, error) {
	return graph.Resolve(d.graph, t)
}

// Trigger runs one pass for a request and returns its ordered updates.
//
// Value and open triggers go through resolve, evaluate and assemble. Open
// triggers then initialize every button; value triggers run the update
// handlers that depend on the changed Reference. Button triggers invoke
// the button's state machine only.
//
// Fatal errors carry the failing provider's identity; use IsRequestError
// to tell caller mistakes from unexpected failures.
func (d *Dialog) Trigger(ctx context.Context, req ir.Request) (ir.Response, error) {
	passID := d.passIDs.Generate()
	seq := d.clock.Next()
	start := time.Now()
	trig := req.Trigger()

	logger := d.logger.With(
		"dialog", d.name,
		"pass_id", passID,
		"trigger", trig.String(),
	)

	updates, outcome, err := d.run(req)

	rec := store.PassRecord{
		ID:            passID,
		Dialog:        d.name,
		GraphHash:     d.graph.Hash(),
		Seq:           seq,
		Trigger:       trig,
		Status:        store.StatusOK,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if hash, herr := ir.ValuesHash(req.DependencyValues); herr == nil {
		rec.ValuesHash = hash
	} else {
		logger.Warn("values hash failed", "error", herr)
	}
	if outcome != nil {
		rec.Computes = outcome.TotalComputes()
		for _, s := range outcome.Skipped {
			rec.Skips = append(rec.Skips, store.SkipRecord{
				ProviderID: s.ProviderID,
				Cause:      s.Cause,
				Reason:     s.Reason,
				Failed:     s.Failed,
			})
			logger.Debug("provider skipped",
				"provider", s.ProviderID,
				"cause", s.Cause,
				"reason", s.Reason,
			)
		}
	}

	if err != nil {
		rec.Status = store.StatusFatal
		if IsRequestError(err) {
			rec.Status = store.StatusRejected
		}
		rec.Error = err.Error()
		rec.FailedProvider = FailedProvider(err)
		// A failed pass returns nothing, so its trace carries no skips.
		rec.Skips = nil
	} else {
		rec.Updates = updates
	}

	d.record(ctx, logger, rec)
	d.metrics.observe(d.name, string(trig.Kind), rec.Status, rec.Computes, len(rec.Skips), time.Since(start))

	if err != nil {
		logger.Error("pass failed",
			"status", rec.Status,
			"provider", rec.FailedProvider,
			"error", err,
		)
		return ir.Response{PassID: passID, Updates: []ir.UpdateResult{}}, err
	}

	logger.Info("pass complete",
		"seq", seq,
		"updates", len(updates),
		"computes", rec.Computes,
		"skipped", len(rec.Skips),
	)
	return ir.Response{PassID: passID, Updates: updates}, nil
}

func (d *Dialog) run(req ir.Request) ([]ir.UpdateResult, *Outcome, error) {
	if req.TriggerKind == ir.TriggerButton {
		u, err := d.press(req)
		if err != nil {
			return nil, nil, err
		}
		return []ir.UpdateResult{u}, nil, nil
	}

	plan, err := graph.Resolve(d.graph, req.Trigger())
	if err != nil {
		return nil, nil, err
	}

	outcome, err := Evaluate(plan, req.DependencyValues)
	if err != nil {
		return nil, nil, err
	}
	updates := Assemble(outcome)

	switch req.TriggerKind {
	case ir.TriggerOpen:
		btn, err := d.initializeButtons(req)
		if err != nil {
			return nil, nil, err
		}
		updates = append(updates, btn...)
	case ir.TriggerValue:
		btn, err := d.updateButtons(req)
		if err != nil {
			return nil, nil, err
		}
		updates = append(updates, btn...)
	}
	return updates, outcome, nil
}

// press invokes a button's state machine.
func (d *Dialog) press(req ir.Request) (ir.UpdateResult, error) {
	f, ok := d.fields[req.TriggerTarget]
	if !ok {
		return ir.UpdateResult{}, &graph.ResolutionError{
			Kind:    string(ir.TriggerButton),
			Target:  req.TriggerTarget,
			Message: "unknown button handler",
		}
	}

	res, err := d.buttons.Invoke(req.TriggerTarget, button.State(req.ButtonState), snapshot(req))
	if err != nil {
		return ir.UpdateResult{}, buttonError(req.TriggerTarget, err)
	}
	return buttonUpdate(f, req.TriggerTarget, res.Value, string(res.State)), nil
}

// initializeButtons runs every button initializer in field order.
func (d *Dialog) initializeButtons(req ir.Request) ([]ir.UpdateResult, error) {
	var out []ir.UpdateResult
	for _, f := range d.graph.Tree().Buttons() {
		id := f.Button()
		res, err := d.buttons.Initialize(id, currentValue(f, req))
		if err != nil {
			return nil, buttonError(id, err)
		}
		out = append(out, buttonUpdate(f, id, res.Value, string(res.State)))
	}
	return out, nil
}

// updateButtons runs the update handlers that depend on the changed
// Reference. Button states are not touched.
func (d *Dialog) updateButtons(req ir.Request) ([]ir.UpdateResult, error) {
	var out []ir.UpdateResult
	for _, id := range d.buttons.UpdatesFor(req.TriggerTarget) {
		f, ok := d.fields[id]
		if !ok {
			continue
		}
		v, err := d.buttons.Update(id, snapshot(req))
		if err != nil {
			return nil, buttonError(id, err)
		}
		out = append(out, buttonUpdate(f, id, v, ""))
	}
	return out, nil
}

func buttonUpdate(f *field.Field, id string, v ir.Value, state string) ir.UpdateResult {
	return ir.UpdateResult{
		Destination: ir.Destination{
			Kind:       ir.DestinationButton,
			Location:   f.Location(),
			ProviderID: id,
		},
		Values: []ir.IndexedValue{ir.At(orNull(v))},
		State:  state,
	}
}

// buttonError keeps caller mistakes as they are and turns handler
// failures into fatal errors naming the handler.
func buttonError(id string, err error) error {
	if errors.Is(err, button.ErrUnknownHandler) || errors.Is(err, button.ErrUnknownState) {
		return err
	}
	return &EvaluationError{Code: ErrCodeProviderError, ProviderID: id, Err: err}
}

// snapshot merges the dependency values with the explicit form snapshot;
// the form snapshot wins on conflicts.
func snapshot(req ir.Request) ir.Object {
	snap := req.DependencyValues.Snapshot()
	for k, v := range req.FormSnapshot {
		snap[k] = v
	}
	return snap
}

// currentValue finds a button field's current value: the value behind its
// Reference, else its entry in the form snapshot, else null.
func currentValue(f *field.Field, req ir.Request) ir.Value {
	if ref := f.Reference(); ref != "" {
		for _, iv := range req.DependencyValues[ref] {
			if len(iv.Indices) == 0 {
				return orNull(iv.Value)
			}
		}
	}
	if v, ok := req.FormSnapshot[f.Name()]; ok {
		return orNull(v)
	}
	return ir.Null{}
}

func (d *Dialog) record(ctx context.Context, logger *slog.Logger, rec store.PassRecord) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.WritePass(ctx, rec); err != nil {
		// The trace is diagnostic only; a write failure never fails the pass.
		logger.Warn("pass trace not recorded", "error", err)
	}
}

// IsRequestError reports whether err is a caller mistake rather than an
// unexpected failure: an unknown trigger target, an undeclared button
// state, or missing or malformed dependency values.
func IsRequestError(err error) bool {
	if graph.IsResolutionError(err) || errors.Is(err, graph.ErrButtonTrigger) {
		return true
	}
	if errors.Is(err, button.ErrUnknownHandler) || errors.Is(err, button.ErrUnknownState) {
		return true
	}
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeMissingValue || ee.Code == ErrCodeInvalidInput
	}
	return false
}
