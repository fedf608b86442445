package button

import (
	"fmt"
	"slices"

	"github.com/roach88/rdialog/internal/ir"
)

// Registry maps caller-assigned handler ids to handlers. Each dialog
// instance owns its own registry. Registration must finish before the
// registry is shared; lookups are then safe for concurrent use.
type Registry struct {
	entries map[string]*entry
	order   []string
}

type entry struct {
	handler Handler
	update  UpdateHandler
	states  []State
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a handler under id.
func (r *Registry) Register(id string, h Handler) error {
	if id == "" {
		return fmt.Errorf("register button handler: empty id")
	}
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, id)
	}
	states := h.States()
	if len(states) == 0 {
		return fmt.Errorf("register button handler %q: no states declared", id)
	}
	r.entries[id] = &entry{handler: h, states: states}
	r.order = append(r.order, id)
	return nil
}

// RegisterUpdate attaches an update handler to a registered handler.
func (r *Registry) RegisterUpdate(id string, u UpdateHandler) error {
	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHandler, id)
	}
	if e.update != nil {
		return fmt.Errorf("%w: update for %q", ErrDuplicateHandler, id)
	}
	e.update = u
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Handlers returns the registered ids in registration order.
func (r *Registry) Handlers() []string { return slices.Clone(r.order) }

// States returns the declared states of a handler.
func (r *Registry) States(id string) ([]State, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.states), nil
}

// Initialize runs the handler's initializer and checks the returned state.
func (r *Registry) Initialize(id string, current ir.Value) (Result, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Result{}, err
	}
	if current == nil {
		current = ir.Null{}
	}
	res, err := e.handler.Initialize(current)
	if err != nil {
		return Result{}, fmt.Errorf("initialize %q: %w", id, err)
	}
	return e.check(id, res)
}

// Invoke runs the handler for one button press. The current state must be
// one of the declared states, and so must the returned one.
func (r *Registry) Invoke(id string, state State, snapshot ir.Object) (Result, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Result{}, err
	}
	if !slices.Contains(e.states, state) {
		return Result{}, fmt.Errorf("invoke %q: %w: %q", id, ErrUnknownState, state)
	}
	if snapshot == nil {
		snapshot = ir.Object{}
	}
	res, err := e.handler.Invoke(state, snapshot)
	if err != nil {
		return Result{}, fmt.Errorf("invoke %q: %w", id, err)
	}
	return e.check(id, res)
}

// UpdatesFor returns the handlers whose update handler depends on ref,
// in registration order.
func (r *Registry) UpdatesFor(ref string) []string {
	var ids []string
	for _, id := range r.order {
		e := r.entries[id]
		if e.update != nil && slices.Contains(e.update.Dependencies(), ref) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Update runs a handler's update handler. The button state is untouched.
func (r *Registry) Update(id string, snapshot ir.Object) (ir.Value, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if e.update == nil {
		return nil, fmt.Errorf("update %q: no update handler", id)
	}
	if snapshot == nil {
		snapshot = ir.Object{}
	}
	v, err := e.update.Update(snapshot)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", id, err)
	}
	if v == nil {
		v = ir.Null{}
	}
	return v, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, id)
	}
	return e, nil
}

func (e *entry) check(id string, res Result) (Result, error) {
	if !slices.Contains(e.states, res.State) {
		return Result{}, fmt.Errorf("handler %q: %w: %q", id, ErrUndeclaredResult, res.State)
	}
	if res.Value == nil {
		res.Value = ir.Null{}
	}
	return res, nil
}
