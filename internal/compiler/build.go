package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rdialog/internal/button"
	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/provider"
)

// Instantiate validates spec and builds a ready dialog: field tree,
// dependency graph and button registry, all sharing one expression set.
func Instantiate(spec *ir.DialogSpec, opts ...engine.Option) (*engine.Dialog, error) {
	if verrs := Validate(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = v
		}
		return nil, fmt.Errorf("dialog %q: %w", spec.Name, errors.Join(errs...))
	}

	x := NewExpressions()
	tree, err := BuildTree(spec, x)
	if err != nil {
		return nil, err
	}
	buttons, err := BuildButtons(spec, x)
	if err != nil {
		return nil, err
	}

	return engine.NewDialog(spec.Name, tree, append([]engine.Option{engine.WithButtons(buttons)}, opts...)...)
}

// BuildTree turns a dialog spec into a field tree whose providers
// evaluate compiled CUE expressions.
func BuildTree(spec *ir.DialogSpec, x *Expressions) (*field.Tree, error) {
	children := make([]*field.Field, 0, len(spec.Fields))
	for i := range spec.Fields {
		f, err := buildField(&spec.Fields[i], nil, x)
		if err != nil {
			return nil, fmt.Errorf("dialog %q: %w", spec.Name, err)
		}
		children = append(children, f)
	}

	internal := make([]provider.Provider, 0, len(spec.Providers))
	for i := range spec.Providers {
		p, err := newExprProvider(&spec.Providers[i], spec.Providers[i].ID, x)
		if err != nil {
			return nil, fmt.Errorf("dialog %q: %w", spec.Name, err)
		}
		internal = append(internal, p)
	}

	tree, err := field.NewTree(field.Object("", children), internal...)
	if err != nil {
		return nil, fmt.Errorf("dialog %q: %w", spec.Name, err)
	}
	return tree, nil
}

// buildField builds one field. path holds the names of the enclosing
// fields without element wildcards and seeds default provider ids.
func buildField(fs *ir.FieldSpec, path []string, x *Expressions) (*field.Field, error) {
	if fs.Name != field.ElementName && fs.Name != "" {
		path = append(path[:len(path):len(path)], fs.Name)
	}

	var opts []field.Option
	if fs.Reference != "" {
		opts = append(opts, field.WithReference(fs.Reference))
	}
	if fs.Provider != nil {
		p, err := newExprProvider(fs.Provider, strings.Join(path, "."), x)
		if err != nil {
			return nil, err
		}
		opts = append(opts, field.WithProvider(p))
	}
	for i := range fs.State {
		s := &fs.State[i]
		p, err := newExprProvider(s, s.ID, x)
		if err != nil {
			return nil, err
		}
		opts = append(opts, field.WithState(s.Kind, p))
	}
	if fs.Button != nil {
		opts = append(opts, field.WithButton(fs.Button.Handler))
	}

	switch fs.Type {
	case ir.FieldArray:
		if fs.Element == nil {
			return nil, fmt.Errorf("array field %q has no element template", fs.Name)
		}
		elem, err := buildField(fs.Element, path, x)
		if err != nil {
			return nil, err
		}
		return field.Array(fs.Name, elem, opts...), nil
	case ir.FieldObject:
		children := make([]*field.Field, 0, len(fs.Fields))
		for i := range fs.Fields {
			c, err := buildField(&fs.Fields[i], path, x)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		return field.Object(fs.Name, children, opts...), nil
	default:
		return field.Scalar(fs.Name, fs.Type, opts...), nil
	}
}

// exprProvider is a provider whose compute phase is a CUE expression over
// its dependency values.
type exprProvider struct {
	id    string
	deps  []provider.Dependency
	eager bool
	expr  *Expr
	fail  *Expr
}

var _ provider.Provider = (*exprProvider)(nil)

func newExprProvider(ps *ir.ProviderSpec, defaultID string, x *Expressions) (*exprProvider, error) {
	id := ps.ID
	if id == "" {
		id = defaultID
	}

	p := &exprProvider{id: id, eager: ps.Eager}
	for _, d := range ps.Deps {
		if d.Provider != "" {
			p.deps = append(p.deps, provider.On(d.Provider))
		} else {
			p.deps = append(p.deps, provider.Ref(d.Ref))
		}
	}

	var err error
	if p.expr, err = x.Compile(ps.Expr, VarArgs, VarIndices); err != nil {
		return nil, fmt.Errorf("provider %q: %w", id, err)
	}
	if ps.FailWhen != "" {
		if p.fail, err = x.Compile(ps.FailWhen, VarArgs, VarIndices); err != nil {
			return nil, fmt.Errorf("provider %q: fail: %w", id, err)
		}
	}
	return p, nil
}

func (p *exprProvider) ID() string { return p.id }

func (p *exprProvider) Init(ic provider.InitContext) error {
	for _, d := range p.deps {
		switch d.Kind {
		case provider.DepReference:
			ic.Reference(d.Target)
		case provider.DepProvider:
			ic.Provider(d.Target)
		}
	}
	if p.eager {
		ic.ComputeBeforeOpen()
	}
	return nil
}

func (p *exprProvider) Compute(in provider.Inputs) (ir.Value, error) {
	indices := make(ir.Array, len(in.Indices()))
	for i, n := range in.Indices() {
		indices[i] = ir.Int(n)
	}
	bindings := map[string]ir.Value{
		VarArgs:    ir.Array(in.Values()),
		VarIndices: indices,
	}

	if p.fail != nil {
		failed, err := p.fail.Bool(bindings)
		if err != nil {
			return nil, err
		}
		if failed {
			return nil, provider.Fail("%s", p.fail)
		}
	}
	return p.expr.Eval(bindings)
}

// BuildButtons compiles every button of spec into a registry. Each
// handler's initial and invoke expressions return {value, state}.
func BuildButtons(spec *ir.DialogSpec, x *Expressions) (*button.Registry, error) {
	r := button.NewRegistry()

	var visit func(fs *ir.FieldSpec) error
	visit = func(fs *ir.FieldSpec) error {
		if b := fs.Button; b != nil {
			h, err := newExprButton(b, x)
			if err != nil {
				return err
			}
			if err := r.Register(b.Handler, h); err != nil {
				return err
			}
			if b.Update != nil {
				u, err := x.Compile(b.Update.Expr, VarSnapshot)
				if err != nil {
					return fmt.Errorf("button %q: update: %w", b.Handler, err)
				}
				if err := r.RegisterUpdate(b.Handler, &button.UpdateFunc{
					Deps: b.Update.Deps,
					Fn: func(snapshot ir.Object) (ir.Value, error) {
						return u.Eval(map[string]ir.Value{VarSnapshot: snapshot})
					},
				}); err != nil {
					return err
				}
			}
		}
		for i := range fs.Fields {
			if err := visit(&fs.Fields[i]); err != nil {
				return err
			}
		}
		if fs.Element != nil {
			return visit(fs.Element)
		}
		return nil
	}

	for i := range spec.Fields {
		if err := visit(&spec.Fields[i]); err != nil {
			return nil, fmt.Errorf("dialog %q: %w", spec.Name, err)
		}
	}
	return r, nil
}

func newExprButton(b *ir.ButtonSpec, x *Expressions) (*button.Func, error) {
	initial, err := x.Compile(b.Initial, VarCurrent)
	if err != nil {
		return nil, fmt.Errorf("button %q: initial: %w", b.Handler, err)
	}
	invoke, err := x.Compile(b.Invoke, VarFrom, VarSnapshot)
	if err != nil {
		return nil, fmt.Errorf("button %q: invoke: %w", b.Handler, err)
	}

	states := make([]button.State, len(b.States))
	for i, s := range b.States {
		states[i] = button.State(s)
	}

	return &button.Func{
		StateSet: states,
		Init: func(current ir.Value) (button.Result, error) {
			v, err := initial.Eval(map[string]ir.Value{VarCurrent: current})
			if err != nil {
				return button.Result{}, err
			}
			return buttonResult(v)
		},
		Press: func(state button.State, snapshot ir.Object) (button.Result, error) {
			v, err := invoke.Eval(map[string]ir.Value{
				VarFrom:     ir.String(state),
				VarSnapshot: snapshot,
			})
			if err != nil {
				return button.Result{}, err
			}
			return buttonResult(v)
		},
	}, nil
}

// buttonResult reads {value, state} from an evaluated handler expression.
func buttonResult(v ir.Value) (button.Result, error) {
	obj, ok := v.(ir.Object)
	if !ok {
		return button.Result{}, fmt.Errorf("button handler returned %s, want {value, state}", ir.KindOf(v))
	}
	state, ok := obj["state"].(ir.String)
	if !ok {
		return button.Result{}, fmt.Errorf("button handler result has no string state")
	}
	value := obj["value"]
	if value == nil {
		value = ir.Null{}
	}
	return button.Result{Value: value, State: button.State(state)}, nil
}
