package provider

import (
	"fmt"

	"github.com/roach88/rdialog/internal/ir"
)

// Provider is a derived-value or derived-UI-state computation.
type Provider interface {
	// ID is the provider identity, used for memoization and for addressing
	// non-field outputs.
	ID() string

	// Init declares dependencies against the given context.
	Init(ic InitContext) error

	// Compute produces the output from the resolved dependency values.
	Compute(in Inputs) (ir.Value, error)
}

// InitContext collects the dependencies a provider declares.
// The returned Dep handles are used to read values back in Compute.
type InitContext interface {
	// Reference declares a dependency on the current value behind a Reference.
	Reference(id string) Dep

	// Provider declares a dependency on the output of another provider.
	Provider(id string) Dep

	// ComputeBeforeOpen marks the provider as computed when the dialog opens.
	ComputeBeforeOpen()
}

// DepKind distinguishes Reference dependencies from Provider dependencies.
type DepKind int

const (
	// DepReference depends on the value behind a Reference.
	DepReference DepKind = iota

	// DepProvider depends on another provider's output.
	DepProvider
)

// String implements fmt.Stringer.
func (k DepKind) String() string {
	switch k {
	case DepReference:
		return "reference"
	case DepProvider:
		return "provider"
	default:
		return fmt.Sprintf("DepKind(%d)", int(k))
	}
}

// Dependency is one declared dependency descriptor.
type Dependency struct {
	Kind   DepKind
	Target string
}

// String implements fmt.Stringer.
func (d Dependency) String() string {
	return d.Kind.String() + ":" + d.Target
}

// Ref describes a Reference dependency.
func Ref(id string) Dependency {
	return Dependency{Kind: DepReference, Target: id}
}

// On describes a Provider dependency.
func On(id string) Dependency {
	return Dependency{Kind: DepProvider, Target: id}
}

// Dep is a handle to a declared dependency. Its position matches the
// declaration order of the dependency.
type Dep struct {
	index int
}

// Index returns the declaration position of the dependency.
func (d Dep) Index() int {
	return d.index
}

// Inputs are the index-aligned dependency values handed to Compute.
type Inputs struct {
	values  []ir.Value
	indices []int
}

// NewInputs creates Inputs for one computation. The engine builds these;
// tests may build them directly.
func NewInputs(indices []int, values ...ir.Value) Inputs {
	return Inputs{values: values, indices: indices}
}

// Get returns the value behind a dependency handle.
func (in Inputs) Get(d Dep) ir.Value {
	return in.At(d.index)
}

// At returns the i-th dependency value in declaration order.
// Out-of-range positions yield ir.Null.
func (in Inputs) At(i int) ir.Value {
	if i < 0 || i >= len(in.values) {
		return ir.Null{}
	}
	if in.values[i] == nil {
		return ir.Null{}
	}
	return in.values[i]
}

// Len returns the number of dependency values.
func (in Inputs) Len() int {
	return len(in.values)
}

// Values returns a copy of all dependency values in declaration order.
func (in Inputs) Values() []ir.Value {
	out := make([]ir.Value, len(in.values))
	for i := range in.values {
		out[i] = in.At(i)
	}
	return out
}

// Indices returns the index tuple of this computation. Empty when the
// provider is not nested in a repeated structure.
func (in Inputs) Indices() []int {
	return in.indices
}
