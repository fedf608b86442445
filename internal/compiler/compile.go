package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/rdialog/internal/ir"
)

// CompileDialog parses a CUE value into a DialogSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the dialog struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`dialog: job: { fields: { ... } }`)
//	spec, err := CompileDialog(v.LookupPath(cue.ParsePath("dialog.job")))
//
// Struct field order is declaration order.
func CompileDialog(v cue.Value) (*ir.DialogSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.DialogSpec{}

	// Dialog name from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	title, err := optionalString(v, "title")
	if err != nil {
		return nil, err
	}
	spec.Title = title

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   "fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}
	spec.Fields, err = parseFields(fieldsVal, "fields")
	if err != nil {
		return nil, err
	}

	// Internal providers (optional)
	provVal := v.LookupPath(cue.ParsePath("providers"))
	if provVal.Exists() {
		iter, err := provVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			p, err := parseProvider(iter.Value(), "providers."+iter.Label())
			if err != nil {
				return nil, err
			}
			if p.ID == "" {
				p.ID = iter.Label()
			}
			spec.Providers = append(spec.Providers, *p)
		}
	}

	return spec, nil
}

// parseFields parses an ordered struct of field declarations.
func parseFields(v cue.Value, at string) ([]ir.FieldSpec, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.FieldSpec
	for iter.Next() {
		f, err := parseField(iter.Value(), iter.Label(), at+"."+iter.Label())
		if err != nil {
			return nil, err
		}
		fields = append(fields, *f)
	}
	return fields, nil
}

func parseField(v cue.Value, name, at string) (*ir.FieldSpec, error) {
	f := &ir.FieldSpec{Name: name}

	typ, err := optionalString(v, "type")
	if err != nil {
		return nil, err
	}
	if typ == "" {
		typ = string(ir.FieldAny)
	}
	f.Type = ir.FieldType(typ)

	f.Reference, err = optionalString(v, "reference")
	if err != nil {
		return nil, err
	}

	if pv := v.LookupPath(cue.ParsePath("provider")); pv.Exists() {
		f.Provider, err = parseProvider(pv, at+".provider")
		if err != nil {
			return nil, err
		}
	}

	// State providers are keyed by identity
	if sv := v.LookupPath(cue.ParsePath("state")); sv.Exists() {
		iter, err := sv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			p, err := parseProvider(iter.Value(), at+".state."+iter.Label())
			if err != nil {
				return nil, err
			}
			if p.ID == "" {
				p.ID = iter.Label()
			}
			f.State = append(f.State, *p)
		}
	}

	if bv := v.LookupPath(cue.ParsePath("button")); bv.Exists() {
		f.Button, err = parseButton(bv, at+".button")
		if err != nil {
			return nil, err
		}
	}

	if cv := v.LookupPath(cue.ParsePath("fields")); cv.Exists() {
		f.Fields, err = parseFields(cv, at+".fields")
		if err != nil {
			return nil, err
		}
	}

	if ev := v.LookupPath(cue.ParsePath("element")); ev.Exists() {
		f.Element, err = parseField(ev, "*", at+".element")
		if err != nil {
			return nil, err
		}
	}

	return f, nil
}

func parseProvider(v cue.Value, at string) (*ir.ProviderSpec, error) {
	p := &ir.ProviderSpec{}
	var err error

	if p.ID, err = optionalString(v, "id"); err != nil {
		return nil, err
	}
	if p.Kind, err = optionalString(v, "kind"); err != nil {
		return nil, err
	}
	if p.FailWhen, err = optionalString(v, "fail"); err != nil {
		return nil, err
	}

	exprVal := v.LookupPath(cue.ParsePath("expr"))
	if !exprVal.Exists() {
		return nil, &CompileError{
			Field:   at + ".expr",
			Message: "provider expr is required",
			Pos:     v.Pos(),
		}
	}
	if p.Expr, err = exprVal.String(); err != nil {
		return nil, formatCUEError(err)
	}

	if ev := v.LookupPath(cue.ParsePath("eager")); ev.Exists() {
		if p.Eager, err = ev.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if dv := v.LookupPath(cue.ParsePath("deps")); dv.Exists() {
		iter, err := dv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			d, err := parseDep(iter.Value(), at+".deps")
			if err != nil {
				return nil, err
			}
			p.Deps = append(p.Deps, d)
		}
	}

	return p, nil
}

// parseDep accepts {ref: "x"} or {provider: "y"}.
func parseDep(v cue.Value, at string) (ir.DepSpec, error) {
	var d ir.DepSpec
	var err error
	if d.Ref, err = optionalString(v, "ref"); err != nil {
		return d, err
	}
	if d.Provider, err = optionalString(v, "provider"); err != nil {
		return d, err
	}
	if (d.Ref == "") == (d.Provider == "") {
		return d, &CompileError{
			Field:   at,
			Message: "dependency must set exactly one of ref or provider",
			Pos:     v.Pos(),
		}
	}
	return d, nil
}

func parseButton(v cue.Value, at string) (*ir.ButtonSpec, error) {
	b := &ir.ButtonSpec{}
	var err error

	if b.Handler, err = optionalString(v, "handler"); err != nil {
		return nil, err
	}
	if b.Initial, err = optionalString(v, "initial"); err != nil {
		return nil, err
	}
	if b.Invoke, err = optionalString(v, "invoke"); err != nil {
		return nil, err
	}

	if sv := v.LookupPath(cue.ParsePath("states")); sv.Exists() {
		if b.States, err = stringList(sv); err != nil {
			return nil, err
		}
	}

	if uv := v.LookupPath(cue.ParsePath("update")); uv.Exists() {
		u := &ir.UpdateSpec{}
		if u.Expr, err = optionalString(uv, "expr"); err != nil {
			return nil, err
		}
		if dv := uv.LookupPath(cue.ParsePath("deps")); dv.Exists() {
			if u.Deps, err = stringList(dv); err != nil {
				return nil, err
			}
		}
		b.Update = u
	}

	return b, nil
}

func optionalString(v cue.Value, key string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(key))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
