package engine

import (
	"slices"

	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
)

// Assemble converts an evaluation outcome into Update Results.
//
// Each emitting provider that produced at least one value yields one
// result, in evaluation order. Field providers are addressed by the
// field's location template; state providers by their identity. Support
// steps and internal providers yield nothing.
func Assemble(o *Outcome) []ir.UpdateResult {
	updates := []ir.UpdateResult{}
	if o == nil {
		return updates
	}

	for _, e := range o.Entries {
		if !e.Emit || len(e.Values) == 0 {
			continue
		}

		var dest ir.Destination
		switch e.Node.Target {
		case field.TargetField:
			dest = ir.Destination{Kind: ir.DestinationField, Location: e.Node.Location()}
		case field.TargetState:
			dest = ir.Destination{
				Kind:       ir.DestinationState,
				ProviderID: e.Node.ID,
				StateKind:  e.Node.StateKind,
			}
		default:
			continue
		}

		values := slices.Clone(e.Values)
		ir.SortIndexed(values)
		updates = append(updates, ir.UpdateResult{Destination: dest, Values: values})
	}
	return updates
}
