package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/logging"
)

func instantiateJob(t *testing.T) *engine.Dialog {
	t.Helper()
	d, err := Instantiate(compileJob(t),
		engine.WithLogger(logging.NewNop()),
		engine.WithPassIDs(engine.NewFixedGenerator("p1", "p2", "p3")),
	)
	require.NoError(t, err)
	return d
}

func TestBuildTreeDefaultsProviderIDs(t *testing.T) {
	tree, err := BuildTree(compileJob(t), NewExpressions())
	require.NoError(t, err)

	var ids []string
	for _, a := range tree.Attachments() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []string{"namePlaceholder", "title", "steps.label", "version", "prefix"}, ids)

	a, ok := tree.ByProvider("steps.label")
	require.True(t, ok)
	assert.Equal(t, "/steps/*/label", a.Field.Location())
	assert.Equal(t, 1, a.Depth)
	assert.Equal(t, field.TargetInternal, tree.Attachments()[4].Target)
}

func TestInstantiateValueTrigger(t *testing.T) {
	d := instantiateJob(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("nightly")}),
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.UpdateResult{
		{
			Destination: ir.Destination{Kind: ir.DestinationState, ProviderID: "namePlaceholder", StateKind: "placeholder"},
			Values:      []ir.IndexedValue{ir.At(ir.String("e.g. nightly"))},
		},
		{
			Destination: ir.Destination{Kind: ir.DestinationField, Location: "/title"},
			Values:      []ir.IndexedValue{ir.At(ir.String("NIGHTLY"))},
		},
		{
			Destination: ir.Destination{Kind: ir.DestinationButton, Location: "/run", ProviderID: "job"},
			Values:      []ir.IndexedValue{ir.At(ir.String("Start nightly"))},
		},
	}, resp.Updates)
}

func TestInstantiateDeclaredFailure(t *testing.T) {
	d := instantiateJob(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:      ir.TriggerValue,
		TriggerTarget:    "name",
		DependencyValues: ir.Single(map[string]ir.Value{"name": ir.String("")}),
	})
	require.NoError(t, err)
	require.Len(t, resp.Updates, 2, "placeholder skipped")
	assert.Equal(t, "/title", resp.Updates[0].Destination.Location)
}

func TestInstantiateRepeatedStructure(t *testing.T) {
	d := instantiateJob(t)

	resp, err := d.Trigger(context.Background(), ir.Request{
		TriggerKind:   ir.TriggerValue,
		TriggerTarget: "step.cmd",
		DependencyValues: ir.DependencyValues{
			"step.cmd": {ir.At(ir.String("build"), 0), ir.At(ir.String("test"), 1)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []ir.UpdateResult{{
		Destination: ir.Destination{Kind: ir.DestinationField, Location: "/steps/*/label"},
		Values: []ir.IndexedValue{
			ir.At(ir.String("step 0: build"), 0),
			ir.At(ir.String("step 1: test"), 1),
		},
	}}, resp.Updates)
}

func TestInstantiateButtons(t *testing.T) {
	d := instantiateJob(t)
	ctx := context.Background()

	resp, err := d.Trigger(ctx, ir.Request{TriggerKind: ir.TriggerOpen})
	require.NoError(t, err)
	assert.Equal(t, []ir.UpdateResult{
		{
			Destination: ir.Destination{Kind: ir.DestinationField, Location: "/version"},
			Values:      []ir.IndexedValue{ir.At(ir.String("v1"))},
		},
		{
			Destination: ir.Destination{Kind: ir.DestinationButton, Location: "/run", ProviderID: "job"},
			Values:      []ir.IndexedValue{ir.At(ir.String("Start"))},
			State:       "idle",
		},
	}, resp.Updates)

	resp, err = d.Trigger(ctx, ir.Request{
		TriggerKind:   ir.TriggerButton,
		TriggerTarget: "job",
		ButtonState:   "idle",
		FormSnapshot:  ir.Object{"name": ir.String("nightly")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, ir.String("Stop nightly"), resp.Updates[0].Values[0].Value)
	assert.Equal(t, "running", resp.Updates[0].State)
}

func TestInstantiateRejectsInvalidSpec(t *testing.T) {
	_, err := Instantiate(&ir.DialogSpec{Name: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrDialogNoFields)
}

func TestInstantiateConstructionErrors(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "cyclic",
		Fields: []ir.FieldSpec{
			{Name: "a", Type: ir.FieldString, Provider: &ir.ProviderSpec{ID: "a", Deps: []ir.DepSpec{{Provider: "b"}}, Expr: "args[0]"}},
			{Name: "b", Type: ir.FieldString, Provider: &ir.ProviderSpec{ID: "b", Deps: []ir.DepSpec{{Provider: "a"}}, Expr: "args[0]"}},
			{Name: "c", Type: ir.FieldString, Provider: &ir.ProviderSpec{ID: "c", Deps: []ir.DepSpec{{Ref: "missing"}}, Expr: "args[0]"}},
		},
	}

	_, err := Instantiate(spec, engine.WithLogger(logging.NewNop()))
	require.Error(t, err)
	assert.True(t, graph.HasCode(err, graph.ErrUnknownReference))
}

func TestBuildTreeBadExpression(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "bad",
		Fields: []ir.FieldSpec{
			{Name: "a", Type: ir.FieldString, Provider: &ir.ProviderSpec{Expr: "args[0] +"}},
		},
	}
	_, err := BuildTree(spec, NewExpressions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `provider "a"`)
}

func TestBuildButtonsBadResult(t *testing.T) {
	spec := &ir.DialogSpec{
		Name: "bad",
		Fields: []ir.FieldSpec{{
			Name: "b",
			Type: ir.FieldString,
			Button: &ir.ButtonSpec{
				Handler: "b",
				States:  []string{"only"},
				Initial: `"not a struct"`,
				Invoke:  `{value: 1, state: "only"}`,
			},
		}},
	}
	r, err := BuildButtons(spec, NewExpressions())
	require.NoError(t, err)

	_, err = r.Initialize("b", ir.Null{})
	assert.ErrorContains(t, err, "want {value, state}")

	res, err := r.Invoke("b", "only", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), res.Value)
}
