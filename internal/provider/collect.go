package provider

import "fmt"

// Declaration is what a provider declared during Init.
type Declaration struct {
	Deps  []Dependency
	Eager bool
}

// collector is the InitContext used while building the dependency graph.
type collector struct {
	decl Declaration
}

func (c *collector) Reference(id string) Dep {
	c.decl.Deps = append(c.decl.Deps, Ref(id))
	return Dep{index: len(c.decl.Deps) - 1}
}

func (c *collector) Provider(id string) Dep {
	c.decl.Deps = append(c.decl.Deps, On(id))
	return Dep{index: len(c.decl.Deps) - 1}
}

func (c *collector) ComputeBeforeOpen() {
	c.decl.Eager = true
}

// Collect runs the provider's Init phase and returns its declaration.
// A panic inside Init is converted to an error.
func Collect(p Provider) (decl Declaration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %q: init panicked: %v", p.ID(), r)
		}
	}()

	c := &collector{}
	if err := p.Init(c); err != nil {
		return Declaration{}, fmt.Errorf("provider %q: init: %w", p.ID(), err)
	}
	return c.decl, nil
}
