package field

import (
	"slices"

	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// ElementName is the path segment of an array's element template.
const ElementName = "*"

// Field is one node of the field tree.
type Field struct {
	name      string
	kind      ir.FieldType
	reference string
	provider  provider.Provider
	state     []State
	button    string
	children  []*Field
	element   *Field

	// Set by NewTree.
	path   []string
	depth  int
	parent *Field
	tree   *Tree
}

// State is a provider computing non-field UI state for a field.
type State struct {
	Kind     string
	Provider provider.Provider
}

// Option configures a field at construction.
type Option func(*Field)

// WithReference exposes the field's value under a Reference identity.
func WithReference(ref string) Option {
	return func(f *Field) {
		f.reference = ref
	}
}

// WithProvider attaches a provider computing the field's value.
func WithProvider(p provider.Provider) Option {
	return func(f *Field) {
		f.provider = p
	}
}

// WithState attaches a provider computing UI state of the given kind.
func WithState(kind string, p provider.Provider) Option {
	return func(f *Field) {
		f.state = append(f.state, State{Kind: kind, Provider: p})
	}
}

// WithButton attaches the button handler with the given id.
func WithButton(handler string) Option {
	return func(f *Field) {
		f.button = handler
	}
}

// Object creates an object field with children in declaration order.
func Object(name string, children []*Field, opts ...Option) *Field {
	return newField(name, ir.FieldObject, children, nil, opts)
}

// Array creates an array field whose elements follow the element template.
func Array(name string, element *Field, opts ...Option) *Field {
	return newField(name, ir.FieldArray, nil, element, opts)
}

// Scalar creates a leaf field of the given type.
func Scalar(name string, kind ir.FieldType, opts ...Option) *Field {
	return newField(name, kind, nil, nil, opts)
}

func newField(name string, kind ir.FieldType, children []*Field, element *Field, opts []Option) *Field {
	f := &Field{
		name:     name,
		kind:     kind,
		children: children,
		element:  element,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the field's own name. Element templates are named "*".
func (f *Field) Name() string { return f.name }

// Kind returns the declared type.
func (f *Field) Kind() ir.FieldType { return f.kind }

// Reference returns the Reference identity, or "" when the field has none.
func (f *Field) Reference() string { return f.reference }

// Provider returns the value provider, or nil.
func (f *Field) Provider() provider.Provider { return f.provider }

// State returns the state providers in declaration order.
func (f *Field) State() []State { return slices.Clone(f.state) }

// Button returns the button handler id, or "".
func (f *Field) Button() string { return f.button }

// Children returns the children of an object field.
func (f *Field) Children() []*Field { return slices.Clone(f.children) }

// Element returns the element template of an array field.
func (f *Field) Element() *Field { return f.element }

// Parent returns the enclosing field, or nil for the root.
func (f *Field) Parent() *Field { return f.parent }

// Path returns the property names from the root to this field.
// Element templates contribute "*".
func (f *Field) Path() []string { return slices.Clone(f.path) }

// Depth returns the number of array ancestors of the field.
func (f *Field) Depth() int { return f.depth }

// Repeated reports whether the field lives inside an array element.
func (f *Field) Repeated() bool { return f.depth > 0 }

// Location returns the field's address as a JSON pointer template.
func (f *Field) Location() string { return Location(f.path) }
