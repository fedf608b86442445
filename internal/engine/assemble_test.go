package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

func TestAssemble_Destinations(t *testing.T) {
	g := mustGraph(t, field.Object("", []*field.Field{
		field.Scalar("country", ir.FieldString,
			field.WithReference("country"),
			field.WithState(provider.KindChoices, &provider.Func{
				Name: "countryChoices",
				Deps: []provider.Dependency{provider.Ref("country")},
				Fn: func(provider.Inputs) (ir.Value, error) {
					return ir.NewArray(ir.String("NL"), ir.String("DE")), nil
				},
			}),
		),
		field.Scalar("label", ir.FieldString, field.WithProvider(provider.Identity("label", provider.On("normalized")))),
	}), provider.Identity("normalized", provider.Ref("country")))

	_, updates := run(t, g, ir.ValueChanged("country"), ir.Single(map[string]ir.Value{
		"country": ir.String("NL"),
	}))

	assert.Equal(t, []ir.UpdateResult{
		{
			Destination: ir.Destination{
				Kind:       ir.DestinationState,
				ProviderID: "countryChoices",
				StateKind:  provider.KindChoices,
			},
			Values: []ir.IndexedValue{ir.At(ir.NewArray(ir.String("NL"), ir.String("DE")))},
		},
		fieldUpdate("/label", ir.At(ir.String("NL"))),
	}, updates, "internal provider emits nothing")
}

func TestAssemble_NilOutcome(t *testing.T) {
	updates := Assemble(nil)
	assert.NotNil(t, updates)
	assert.Empty(t, updates)
}

func TestAssemble_EagerAtOpen(t *testing.T) {
	g := mustGraph(t, field.Object("", []*field.Field{
		field.Scalar("greeting", ir.FieldString, field.WithProvider(provider.Const("greeting", ir.String("hello"), true))),
		field.Scalar("loud", ir.FieldString, field.WithProvider(&provider.Func{
			Name: "loud",
			Deps: []provider.Dependency{provider.On("greeting")},
			Fn: func(in provider.Inputs) (ir.Value, error) {
				return in.At(0).(ir.String) + "!", nil
			},
		})),
		field.Scalar("lazy", ir.FieldString, field.WithProvider(provider.Const("lazy", ir.String("never"), false))),
	}))

	plan := mustPlan(t, g, ir.Opened())
	assert.Equal(t, []string{"greeting", "loud"}, plan.IDs())

	_, updates := run(t, g, ir.Opened(), nil)
	assert.Equal(t, []ir.UpdateResult{
		fieldUpdate("/greeting", ir.At(ir.String("hello"))),
		fieldUpdate("/loud", ir.At(ir.String("hello!"))),
	}, updates)
}
