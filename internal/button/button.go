// Package button implements button action state machines.
//
// A button handler is a finite-state machine over a declared set of
// states. Initialize runs when the dialog opens or the field is reset;
// Invoke runs on each press with a snapshot of the form's values. There is
// no transition table: a transition is whatever Invoke returns, provided
// the returned state is one of the declared states.
//
// An optional update handler reacts to other fields changing. It produces
// a new display value and never changes the button's state.
package button

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/rdialog/internal/ir"
)

// State is an opaque button state identifier.
type State string

// Result is the outcome of Initialize or Invoke.
type Result struct {
	Value ir.Value
	State State
}

// Handler is a button action state machine.
type Handler interface {
	// States returns the declared states.
	States() []State

	// Initialize computes the initial value and state from the field's
	// current value.
	Initialize(current ir.Value) (Result, error)

	// Invoke computes the next value and state on a button press.
	Invoke(state State, snapshot ir.Object) (Result, error)
}

// UpdateHandler reacts to other fields changing without a state transition.
type UpdateHandler interface {
	// Dependencies returns the Reference ids the handler reacts to.
	Dependencies() []string

	// Update computes the new display value.
	Update(snapshot ir.Object) (ir.Value, error)
}

var (
	// ErrUnknownHandler is returned for handler ids that were never registered.
	ErrUnknownHandler = errors.New("unknown button handler")

	// ErrUnknownState is returned when a state is outside the declared set.
	ErrUnknownState = errors.New("unknown button state")

	// ErrUndeclaredResult is returned when a handler transitions to a state
	// outside its declared set.
	ErrUndeclaredResult = errors.New("handler returned an undeclared state")

	// ErrDuplicateHandler is returned when a handler id is registered twice.
	ErrDuplicateHandler = errors.New("duplicate button handler")

	// ErrRepeatedButton is returned when a button field sits inside an array
	// element. Handlers hold one state per dialog, not one per element.
	ErrRepeatedButton = errors.New("button inside array element")
)

// Func is a Handler built from functions.
type Func struct {
	StateSet []State
	Init     func(current ir.Value) (Result, error)
	Press    func(state State, snapshot ir.Object) (Result, error)
}

var _ Handler = (*Func)(nil)

// States implements Handler.
func (f *Func) States() []State { return slices.Clone(f.StateSet) }

// Initialize implements Handler.
func (f *Func) Initialize(current ir.Value) (Result, error) {
	if f.Init == nil {
		if len(f.StateSet) == 0 {
			return Result{}, fmt.Errorf("%w: no states declared", ErrUnknownState)
		}
		return Result{Value: current, State: f.StateSet[0]}, nil
	}
	return f.Init(current)
}

// Invoke implements Handler.
func (f *Func) Invoke(state State, snapshot ir.Object) (Result, error) {
	if f.Press == nil {
		return Result{Value: ir.Null{}, State: state}, nil
	}
	return f.Press(state, snapshot)
}

// UpdateFunc is an UpdateHandler built from a function.
type UpdateFunc struct {
	Deps []string
	Fn   func(snapshot ir.Object) (ir.Value, error)
}

var _ UpdateHandler = (*UpdateFunc)(nil)

// Dependencies implements UpdateHandler.
func (u *UpdateFunc) Dependencies() []string { return slices.Clone(u.Deps) }

// Update implements UpdateHandler.
func (u *UpdateFunc) Update(snapshot ir.Object) (ir.Value, error) {
	return u.Fn(snapshot)
}
