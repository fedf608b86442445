package ir

import "fmt"

// TriggerKind identifies the external event that starts an evaluation pass.
type TriggerKind string

const (
	// TriggerValue fires when the value behind a Reference changed.
	TriggerValue TriggerKind = "value"

	// TriggerOpen fires once when the dialog is opened.
	TriggerOpen TriggerKind = "open"

	// TriggerButton fires when a button action is invoked.
	TriggerButton TriggerKind = "button"
)

// ValidTriggerKinds defines allowed trigger kinds.
var ValidTriggerKinds = map[TriggerKind]bool{
	TriggerValue:  true,
	TriggerOpen:   true,
	TriggerButton: true,
}

// Trigger is the root event of one evaluation pass. It is never persisted
// beyond the trace record of the pass.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// Target is the Reference id for value triggers and the button handler
	// id for button triggers. Empty for open triggers.
	Target string `json:"target,omitempty"`
}

// ValueChanged creates a value-change trigger for a Reference.
func ValueChanged(ref string) Trigger {
	return Trigger{Kind: TriggerValue, Target: ref}
}

// Opened creates a dialog-open trigger.
func Opened() Trigger {
	return Trigger{Kind: TriggerOpen}
}

// ButtonPressed creates a button-invocation trigger.
func ButtonPressed(handler string) Trigger {
	return Trigger{Kind: TriggerButton, Target: handler}
}

// String implements fmt.Stringer.
func (t Trigger) String() string {
	if t.Target == "" {
		return string(t.Kind)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Target)
}

// Request is one external trigger event plus the raw values it needs.
type Request struct {
	TriggerKind      TriggerKind      `json:"trigger_kind"`
	TriggerTarget    string           `json:"trigger_target,omitempty"`
	DependencyValues DependencyValues `json:"dependency_values,omitempty"`

	// ButtonState is the current state of the invoked button (button triggers only).
	ButtonState string `json:"button_state,omitempty"`

	// FormSnapshot holds sibling field values handed to button handlers.
	FormSnapshot Object `json:"form_snapshot,omitempty"`
}

// Trigger returns the trigger described by the request.
func (r Request) Trigger() Trigger {
	return Trigger{Kind: r.TriggerKind, Target: r.TriggerTarget}
}

// DestinationKind says what an Update Result addresses.
type DestinationKind string

const (
	// DestinationField addresses a field location in the rendered form.
	DestinationField DestinationKind = "field"

	// DestinationState addresses non-field UI state by provider identity.
	DestinationState DestinationKind = "state"

	// DestinationButton addresses a button field and carries its new state.
	DestinationButton DestinationKind = "button"
)

// Destination identifies where an Update Result should be applied.
type Destination struct {
	Kind DestinationKind `json:"kind"`

	// Location is the field location template (e.g. "/items/*/name") for
	// field and button destinations.
	Location string `json:"location,omitempty"`

	// ProviderID identifies the provider (state destinations) or the button
	// handler (button destinations).
	ProviderID string `json:"provider_id,omitempty"`

	// StateKind is the UI-state category of a state destination
	// ("choices", "placeholder", ...).
	StateKind string `json:"state_kind,omitempty"`
}

// String implements fmt.Stringer.
func (d Destination) String() string {
	switch d.Kind {
	case DestinationField:
		return d.Location
	case DestinationState:
		return d.ProviderID
	default:
		return fmt.Sprintf("%s:%s", d.Location, d.ProviderID)
	}
}

// UpdateResult is one output of an evaluation pass.
type UpdateResult struct {
	Destination Destination    `json:"destination"`
	Values      []IndexedValue `json:"values"`

	// State is the new button state (button destinations only).
	State string `json:"state,omitempty"`
}

// Object converts the update into an Object for canonical encoding.
func (u UpdateResult) Object() Object {
	dest := Object{"kind": String(u.Destination.Kind)}
	if u.Destination.Location != "" {
		dest["location"] = String(u.Destination.Location)
	}
	if u.Destination.ProviderID != "" {
		dest["provider_id"] = String(u.Destination.ProviderID)
	}
	if u.Destination.StateKind != "" {
		dest["state_kind"] = String(u.Destination.StateKind)
	}

	values := make(Array, len(u.Values))
	for i, iv := range u.Values {
		values[i] = iv.Object()
	}

	obj := Object{"destination": dest, "values": values}
	if u.State != "" {
		obj["state"] = String(u.State)
	}
	return obj
}

// Response is the ordered result of one evaluation pass.
type Response struct {
	PassID  string         `json:"pass_id"`
	Updates []UpdateResult `json:"updates"`
}
