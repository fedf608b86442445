package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/button"
	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/logging"
	"github.com/roach88/rdialog/internal/provider"
	"github.com/roach88/rdialog/internal/store"
)

// memRecorder keeps pass records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []store.PassRecord
	err     error
}

func (r *memRecorder) WritePass(_ context.Context, p store.PassRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, p)
	return nil
}

// jobTree is a small dialog: a name, a derived title, a button that
// starts and stops a job, and a state provider failing on empty names.
func jobTree(t *testing.T) *field.Tree {
	t.Helper()
	tree, err := field.NewTree(field.Object("", []*field.Field{
		field.Scalar("name", ir.FieldString,
			field.WithReference("name"),
			field.WithState(provider.KindPlaceholder, &provider.Func{
				Name: "namePlaceholder",
				Deps: []provider.Dependency{provider.Ref("name")},
				Fn: func(in provider.Inputs) (ir.Value, error) {
					if ir.Equal(in.At(0), ir.String("")) {
						return nil, provider.Fail("no name yet")
					}
					return ir.String("e.g. " + string(in.At(0).(ir.String))), nil
				},
			}),
		),
		field.Scalar("title", ir.FieldString, field.WithProvider(&provider.Func{
			Name: "title",
			Deps: []provider.Dependency{provider.Ref("name")},
			Fn: func(in provider.Inputs) (ir.Value, error) {
				if ir.Equal(in.At(0), ir.String("boom")) {
					return nil, errors.New("title service down")
				}
				return ir.String("Job: " + string(in.At(0).(ir.String))), nil
			},
		})),
		field.Scalar("version", ir.FieldString, field.WithProvider(provider.Const("version", ir.String("v1"), true))),
		field.Scalar("run", ir.FieldString, field.WithReference("run"), field.WithButton("job")),
	}))
	require.NoError(t, err)
	return tree
}

func jobButtons(t *testing.T) *button.Registry {
	t.Helper()
	r := button.NewRegistry()
	require.NoError(t, r.Register("job", &button.Func{
		StateSet: []button.State{"idle", "running"},
		Init: func(current ir.Value) (button.Result, error) {
			if ir.Equal(current, ir.String("running")) {
				return button.Result{Value: ir.String("Stop"), State: "running"}, nil
			}
			return button.Result{Value: ir.String("Start"), State: "idle"}, nil
		},
		Press: func(state button.State, snapshot ir.Object) (button.Result, error) {
			if state == "idle" {
				name, _ := snapshot["name"].(ir.String)
				return button.Result{Value: ir.String("Stop " + string(name)), State: "running"}, nil
			}
			return button.Result{Value: ir.String("Start"), State: "idle"}, nil
		},
	}))
	require.NoError(t, r.RegisterUpdate("job", &button.UpdateFunc{
		Deps: []string{"name"},
		Fn: func(snapshot ir.Object) (ir.Value, error) {
			name, _ := snapshot["name"].(ir.String)
			return ir.String("Start " + string(name)), nil
		},
	}))
	return r
}

func newJobDialog(t *testing.T, opts ...Option) *Dialog {
	t.Helper()
	opts = append([]Option{
		WithButtons(jobButtons(t)),
		WithPassIDs(NewFixedGenerator("pass-1", "pass-2", "pass-3")),
		WithLogger(logging.NewNop()),
	}, opts...)
	d, err := NewDialog("job", jobTree(t), opts...)
	require.NoError(t, err)
	return d
}

func buttonResult(location, handler string, v ir.Value, state string) ir.UpdateResult {
	return ir.UpdateResult{
		Destination: ir.Destination{Kind: ir.DestinationButton, Location: location, ProviderID: handler},
		Values:      []ir.IndexedValue{ir.At(v)},
		State:       state,
	}
}

func TestDialog_ValueTrigger(t *testing.T) {
	d := newJobDialog(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("nightly")}),
	})
	require.NoError(t, err)

	assert.Equal(t, "pass-1", resp.PassID)
	assert.Equal(t, []ir.UpdateResult{
		{
			Destination: ir.Destination{Kind: ir.DestinationState, ProviderID: "namePlaceholder", StateKind: provider.KindPlaceholder},
			Values:      []ir.IndexedValue{ir.At(ir.String("e.g. nightly"))},
		},
		fieldUpdate("/title", ir.At(ir.String("Job: nightly"))),
		buttonResult("/run", "job", ir.String("Start nightly"), ""),
	}, resp.Updates)
}

func TestDialog_OpenTrigger(t *testing.T) {
	d := newJobDialog(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerOpen,
		DependencyValues: ir.Single(map[string]ir.Value{"run": ir.String("running")}),
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.UpdateResult{
		fieldUpdate("/version", ir.At(ir.String("v1"))),
		buttonResult("/run", "job", ir.String("Stop"), "running"),
	}, resp.Updates)
}

func TestDialog_ButtonTrigger(t *testing.T) {
	d := newJobDialog(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerButton,
		TriggerTarget:    "job",
		ButtonState:      "idle",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("from values")}),
		FormSnapshot:     ir.Object{"name": ir.String("nightly")},
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.UpdateResult{
		buttonResult("/run", "job", ir.String("Stop nightly"), "running"),
	}, resp.Updates, "form snapshot overrides dependency values")
}

func TestDialog_ButtonTriggerErrors(t *testing.T) {
	d := newJobDialog(t)
	ctx := context.Background()

	_, err := d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerButton, TriggerTarget: "nope", ButtonState: "idle"})
	require.Error(t, err)
	assert.True(t, graph.IsResolutionError(err))
	assert.True(t, IsRequestError(err))

	_, err = d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerButton, TriggerTarget: "job", ButtonState: "paused"})
	require.ErrorIs(t, err, button.ErrUnknownState)
	assert.True(t, IsRequestError(err))
}

func TestDialog_DeclaredFailureIsSuccess(t *testing.T) {
	rec := &memRecorder{}
	d := newJobDialog(t, WithRecorder(rec))

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("")}),
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.UpdateResult{
		fieldUpdate("/title", ir.At(ir.String("Job: "))),
		buttonResult("/run", "job", ir.String("Start "), ""),
	}, resp.Updates)

	require.Len(t, rec.records, 1)
	assert.Equal(t, store.StatusOK, rec.records[0].Status)
	assert.Equal(t, []store.SkipRecord{
		{ProviderID: "namePlaceholder", Cause: "namePlaceholder", Reason: "no name yet", Failed: true},
	}, rec.records[0].Skips)
}

func TestDialog_FatalFailure(t *testing.T) {
	rec := &memRecorder{}
	var logs bytes.Buffer
	d := newJobDialog(t, WithRecorder(rec), WithLogger(logging.NewWithWriter(&logs, slog.LevelInfo)))

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("boom")}),
	})
	require.Error(t, err)
	assert.False(t, IsRequestError(err))
	assert.Equal(t, "title", FailedProvider(err))
	assert.Empty(t, resp.Updates, "no partial results")

	require.Len(t, rec.records, 1)
	assert.Equal(t, store.StatusFatal, rec.records[0].Status)
	assert.Equal(t, "title", rec.records[0].FailedProvider)
	assert.Contains(t, rec.records[0].Error, "title service down")

	out := logs.String()
	assert.Contains(t, out, "pass failed")
	assert.Contains(t, out, "provider=title")
	assert.Contains(t, out, "err=")
}

func TestDialog_Rejected(t *testing.T) {
	rec := &memRecorder{}
	d := newJobDialog(t, WithRecorder(rec))
	ctx := context.Background()

	_, err := d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerValue, TriggerTarget: "unknown"})
	require.Error(t, err)
	assert.True(t, IsRequestError(err))

	_, err = d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerValue, TriggerTarget: "name"})
	require.ErrorIs(t, err, ErrMissingValue)
	assert.True(t, IsRequestError(err))

	require.Len(t, rec.records, 2)
	for _, r := range rec.records {
		assert.Equal(t, store.StatusRejected, r.Status)
	}
}

func TestDialog_RecorderFailureDoesNotFailPass(t *testing.T) {
	var logs bytes.Buffer
	d := newJobDialog(t,
		WithRecorder(&memRecorder{err: errors.New("disk full")}),
		WithLogger(logging.NewWithWriter(&logs, slog.LevelWarn)),
	)

	_, err := d.Trigger(context.Background(), ir.Request{TriggerKind: ir.TriggerOpen})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "pass trace not recorded")
}

func TestDialog_TraceRoundTripThroughStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	d := newJobDialog(t, WithRecorder(s), WithClock(NewClockAt(41)))
	ctx := context.Background()

	resp, err := d.Trigger(ctx, ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("nightly")}),
	})
	require.NoError(t, err)

	got, err := s.ReadPass(ctx, resp.PassID)
	require.NoError(t, err)
	assert.Equal(t, "job", got.Dialog)
	assert.Equal(t, int64(42), got.Seq)
	assert.Equal(t, d.Graph().Hash(), got.GraphHash)
	assert.Equal(t, ir.ValueChanged("name"), got.Trigger)
	assert.Equal(t, resp.Updates, got.Updates)
	assert.Equal(t, 2, got.Computes)
	assert.Equal(t, ir.EngineVersion, got.EngineVersion)
}

func TestDialog_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	d := newJobDialog(t, WithMetrics(m))
	ctx := context.Background()

	_, err = d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerOpen})
	require.NoError(t, err)
	_, err = d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerValue, TriggerTarget: "missing"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("job", "open", store.StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("job", "value", store.StatusRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.computes.WithLabelValues("job")))
}

func TestNewDialog_Errors(t *testing.T) {
	t.Run("unregistered button handler", func(t *testing.T) {
		_, err := NewDialog("job", jobTree(t), WithLogger(logging.NewNop()))
		require.ErrorIs(t, err, button.ErrUnknownHandler)
	})

	t.Run("button inside array element", func(t *testing.T) {
		tree, err := field.NewTree(field.Object("", []*field.Field{
			field.Array("rows", field.Object("*", []*field.Field{
				field.Scalar("run", ir.FieldString, field.WithReference("row.run"), field.WithButton("job")),
			})),
		}))
		require.NoError(t, err)

		_, err = NewDialog("rows", tree, WithButtons(jobButtons(t)), WithLogger(logging.NewNop()))
		require.ErrorIs(t, err, button.ErrRepeatedButton)
		assert.Contains(t, err.Error(), "/rows/*/run")
	})

	t.Run("cyclic graph", func(t *testing.T) {
		tree, err := field.NewTree(field.Object("", []*field.Field{
			field.Scalar("a", ir.FieldString, field.WithProvider(provider.Identity("a", provider.On("b")))),
			field.Scalar("b", ir.FieldString, field.WithProvider(provider.Identity("b", provider.On("a")))),
		}))
		require.NoError(t, err)

		_, err = NewDialog("cyclic", tree)
		require.Error(t, err)
		assert.True(t, graph.HasCode(err, graph.ErrDependencyCycle))
		assert.True(t, strings.HasPrefix(err.Error(), `dialog "cyclic": `))
	})
}

func TestDialog_Plan(t *testing.T) {
	d := newJobDialog(t)

	plan, err := d.Plan(ir.ValueChanged("name"))
	require.NoError(t, err)
	assert.Equal(t, []string{"namePlaceholder", "title"}, plan.IDs())

	_, err = d.Plan(ir.ButtonPressed("job"))
	assert.ErrorIs(t, err, graph.ErrButtonTrigger)
}

func TestDialog_ConcurrentTriggers(t *testing.T) {
	d := newJobDialog(t, WithPassIDs(UUIDv7Generator{}))
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([][]ir.UpdateResult, 16)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := d.Trigger(ctx, ir.Request{
				TriggerKind:      ir.TriggerValue,
				TriggerTarget:    "name",
				DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("same")}),
			})
			if err == nil {
				results[i] = resp.Updates
			}
		}()
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i])
	}
	assert.Len(t, results[0], 3)
}
