package provider

import "github.com/roach88/rdialog/internal/ir"

// Func is a provider built from a static dependency list and a compute
// function. The compute function receives values in the order of Deps.
//
//	p := &provider.Func{
//		Name: "updatedWidget",
//		Deps: []provider.Dependency{provider.Ref("dependency")},
//		Fn: func(in provider.Inputs) (ir.Value, error) {
//			return in.At(0), nil
//		},
//	}
type Func struct {
	Name  string
	Deps  []Dependency
	Eager bool
	Fn    func(in Inputs) (ir.Value, error)
}

var _ Provider = (*Func)(nil)

// ID implements Provider.
func (f *Func) ID() string {
	return f.Name
}

// Init implements Provider.
func (f *Func) Init(ic InitContext) error {
	for _, d := range f.Deps {
		switch d.Kind {
		case DepReference:
			ic.Reference(d.Target)
		case DepProvider:
			ic.Provider(d.Target)
		}
	}
	if f.Eager {
		ic.ComputeBeforeOpen()
	}
	return nil
}

// Compute implements Provider.
func (f *Func) Compute(in Inputs) (ir.Value, error) {
	if f.Fn == nil {
		return ir.Null{}, nil
	}
	return f.Fn(in)
}

// Const returns a provider with no dependencies that always yields v.
func Const(id string, v ir.Value, eager bool) *Func {
	return &Func{
		Name:  id,
		Eager: eager,
		Fn: func(Inputs) (ir.Value, error) {
			return v, nil
		},
	}
}

// Identity returns a provider that forwards its single dependency.
func Identity(id string, dep Dependency) *Func {
	return &Func{
		Name: id,
		Deps: []Dependency{dep},
		Fn: func(in Inputs) (ir.Value, error) {
			return in.At(0), nil
		},
	}
}
