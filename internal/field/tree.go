package field

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// Target says what a provider's output is applied to.
type Target int

const (
	// TargetField providers compute a field's value.
	TargetField Target = iota

	// TargetState providers compute non-field UI state.
	TargetState

	// TargetInternal providers have no destination. Other providers may
	// depend on them but their output is never emitted.
	TargetInternal
)

// String implements fmt.Stringer.
func (t Target) String() string {
	switch t {
	case TargetField:
		return "field"
	case TargetState:
		return "state"
	case TargetInternal:
		return "internal"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Attachment describes where a provider lives in the tree.
type Attachment struct {
	Provider provider.Provider
	Target   Target

	// Field is the field the provider is attached to. Nil for internal
	// providers.
	Field *Field

	// StateKind is the UI-state category of a state provider.
	StateKind string

	// Depth is the number of array ancestors of the owning field.
	Depth int

	// Order is the declaration position among all attachments.
	Order int
}

// ID returns the provider identity.
func (a Attachment) ID() string {
	return a.Provider.ID()
}

// Tree is an immutable field tree.
type Tree struct {
	root        *Field
	fields      []*Field
	attachments []Attachment
	byRef       map[string]*Field
	byProvider  map[string]int
}

// NewTree finalizes the tree below root: it assigns paths and depths and
// collects every provider in declaration order. Internal providers are
// appended after all field-attached providers.
//
// Duplicate references and provider ids are not rejected here; the
// dependency graph builder reports them with full context.
func NewTree(root *Field, internal ...provider.Provider) (*Tree, error) {
	if root == nil {
		return nil, errors.New("field tree: nil root")
	}

	t := &Tree{
		root:       root,
		byRef:      make(map[string]*Field),
		byProvider: make(map[string]int),
	}
	if err := t.attach(root, nil, nil, 0); err != nil {
		return nil, err
	}

	for _, p := range internal {
		if p == nil {
			return nil, errors.New("field tree: nil internal provider")
		}
		t.addAttachment(Attachment{Provider: p, Target: TargetInternal})
	}
	return t, nil
}

func (t *Tree) attach(f, parent *Field, path []string, depth int) error {
	if f == nil {
		return fmt.Errorf("field tree: nil field under %q", Location(path))
	}
	if f.tree != nil {
		return fmt.Errorf("field tree: field %q already belongs to a tree", f.name)
	}

	f.tree = t
	f.parent = parent
	f.path = path
	f.depth = depth
	t.fields = append(t.fields, f)

	if f.reference != "" {
		if _, ok := t.byRef[f.reference]; !ok {
			t.byRef[f.reference] = f
		}
	}
	if f.provider != nil {
		t.addAttachment(Attachment{Provider: f.provider, Target: TargetField, Field: f, Depth: depth})
	}
	for _, s := range f.state {
		if s.Provider == nil {
			return fmt.Errorf("field tree: nil %s provider on %q", s.Kind, f.Location())
		}
		t.addAttachment(Attachment{
			Provider:  s.Provider,
			Target:    TargetState,
			Field:     f,
			StateKind: s.Kind,
			Depth:     depth,
		})
	}

	switch {
	case f.kind == ir.FieldArray:
		if f.element == nil {
			return fmt.Errorf("field tree: array %q has no element template", f.Location())
		}
		if f.element.name == "" {
			f.element.name = ElementName
		}
		if f.element.name != ElementName {
			return fmt.Errorf("field tree: element template of %q must be named %q", f.Location(), ElementName)
		}
		return t.attach(f.element, f, childPath(path, ElementName), depth+1)
	case f.element != nil:
		return fmt.Errorf("field tree: %s field %q cannot have an element template", f.kind, f.Location())
	}

	for _, c := range f.children {
		if c != nil && c.name == ElementName {
			return fmt.Errorf("field tree: child of %q cannot be named %q", f.Location(), ElementName)
		}
		if c != nil && c.name == "" {
			return fmt.Errorf("field tree: unnamed child of %q", f.Location())
		}
		if err := t.attach(c, f, childPath(path, nameOf(c)), depth); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) addAttachment(a Attachment) {
	a.Order = len(t.attachments)
	if _, ok := t.byProvider[a.ID()]; !ok {
		t.byProvider[a.ID()] = a.Order
	}
	t.attachments = append(t.attachments, a)
}

func childPath(path []string, name string) []string {
	out := make([]string, len(path)+1)
	copy(out, path)
	out[len(path)] = name
	return out
}

func nameOf(f *Field) string {
	if f == nil {
		return ""
	}
	return f.name
}

// Root returns the root field.
func (t *Tree) Root() *Field { return t.root }

// Fields returns every field in depth-first declaration order. Each array
// element template appears exactly once.
func (t *Tree) Fields() []*Field { return slices.Clone(t.fields) }

// Attachments returns every provider attachment in declaration order.
func (t *Tree) Attachments() []Attachment { return slices.Clone(t.attachments) }

// ByReference looks up the field declaring a Reference. When several fields
// declare the same reference the first one wins.
func (t *Tree) ByReference(ref string) (*Field, bool) {
	f, ok := t.byRef[ref]
	return f, ok
}

// ByProvider looks up a provider attachment by provider id.
func (t *Tree) ByProvider(id string) (Attachment, bool) {
	i, ok := t.byProvider[id]
	if !ok {
		return Attachment{}, false
	}
	return t.attachments[i], true
}

// References returns every declared Reference in declaration order,
// duplicates included.
func (t *Tree) References() []string {
	var refs []string
	for _, f := range t.fields {
		if f.reference != "" {
			refs = append(refs, f.reference)
		}
	}
	return refs
}

// Buttons returns every field carrying a button handler.
func (t *Tree) Buttons() []*Field {
	var out []*Field
	for _, f := range t.fields {
		if f.button != "" {
			out = append(out, f)
		}
	}
	return out
}

// ErrSkipChildren can be returned by a walk function to skip the
// descendants of the current field.
var ErrSkipChildren = errors.New("skip children")

// Walk visits every field depth-first in declaration order.
func (t *Tree) Walk(fn func(*Field) error) error {
	err := walk(t.root, fn)
	if errors.Is(err, ErrSkipChildren) {
		return nil
	}
	return err
}

func walk(f *Field, fn func(*Field) error) error {
	if err := fn(f); err != nil {
		if errors.Is(err, ErrSkipChildren) {
			return nil
		}
		return err
	}
	if f.element != nil {
		return walk(f.element, fn)
	}
	for _, c := range f.children {
		if err := walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// String renders the tree as an indented outline, used in diagnostics.
func (t *Tree) String() string {
	var sb strings.Builder
	for _, f := range t.fields {
		sb.WriteString(strings.Repeat("  ", len(f.path)))
		if len(f.path) == 0 {
			sb.WriteString("(root)")
		} else {
			sb.WriteString(f.name)
		}
		sb.WriteString(" ")
		sb.WriteString(string(f.kind))
		if f.reference != "" {
			sb.WriteString(" ref=" + f.reference)
		}
		if f.provider != nil {
			sb.WriteString(" provider=" + f.provider.ID())
		}
		for _, s := range f.state {
			sb.WriteString(" " + s.Kind + "=" + s.Provider.ID())
		}
		if f.button != "" {
			sb.WriteString(" button=" + f.button)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
