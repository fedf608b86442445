package compiler

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/parser"

	"github.com/roach88/rdialog/internal/ir"
)

// Expression variables.
const (
	VarArgs     = "args"     // dependency values in declared order
	VarIndices  = "indices"  // index tuple of the computation
	VarCurrent  = "current"  // button field value (initial)
	VarFrom     = "from"     // button state before the press (invoke)
	VarSnapshot = "snapshot" // form snapshot (invoke, update)
)

// builtinPackages are the CUE builtin packages imported automatically.
var builtinPackages = []string{"strings", "list", "math", "strconv", "regexp"}

// Expressions compiles and evaluates CUE expressions for one dialog.
//
// A cue.Context is not safe for concurrent use, so every compilation and
// evaluation holds the owner's lock. Passes of one dialog evaluate their
// expressions one at a time; different dialogs do not contend.
type Expressions struct {
	mu  sync.Mutex
	ctx *cue.Context
}

// NewExpressions creates an expression set with its own CUE context.
func NewExpressions() *Expressions {
	return &Expressions{ctx: cuecontext.New()}
}

// Expr is one compiled expression.
type Expr struct {
	owner *Expressions
	src   string
	v     cue.Value
}

// Compile compiles src into an expression over the given variables.
// Syntax errors and unknown identifiers are reported here, not at
// evaluation time.
func (x *Expressions) Compile(src string, vars ...string) (*Expr, error) {
	pkgs, err := builtinImports(src, vars)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, formatCUEError(err))
	}

	var b strings.Builder
	for _, pkg := range pkgs {
		fmt.Fprintf(&b, "import %q\n", pkg)
	}
	for _, name := range vars {
		fmt.Fprintf(&b, "%s: _\n", name)
	}
	fmt.Fprintf(&b, "out: (%s)\n", src)

	x.mu.Lock()
	defer x.mu.Unlock()

	v := x.ctx.CompileString(b.String())
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile %q: %w", src, formatCUEError(err))
	}
	return &Expr{owner: x, src: src, v: v}, nil
}

// String returns the expression source.
func (e *Expr) String() string { return e.src }

// Eval evaluates the expression with the given variable bindings.
// The result must be concrete; floats are rejected.
func (e *Expr) Eval(bindings map[string]ir.Value) (ir.Value, error) {
	var data []byte
	err := e.eval(bindings, func(out cue.Value) error {
		var err error
		data, err = out.MarshalJSON()
		return err
	})
	if err != nil {
		return nil, err
	}

	v, err := ir.UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", e.src, err)
	}
	return v, nil
}

// Bool evaluates a boolean expression.
func (e *Expr) Bool(bindings map[string]ir.Value) (bool, error) {
	var b bool
	err := e.eval(bindings, func(out cue.Value) error {
		var err error
		b, err = out.Bool()
		return err
	})
	return b, err
}

// eval fills the bindings and hands the concrete output to read, all
// under the owner's lock.
func (e *Expr) eval(bindings map[string]ir.Value, read func(out cue.Value) error) error {
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()

	v := e.v
	for name, val := range bindings {
		v = v.FillPath(cue.ParsePath(name), ir.ToGo(val))
	}

	out := v.LookupPath(cue.ParsePath("out"))
	if err := out.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("eval %q: %w", e.src, err)
	}
	if err := read(out); err != nil {
		return fmt.Errorf("eval %q: %w", e.src, err)
	}
	return nil
}

// builtinImports returns the builtin packages src selects from, in order of
// first use. Names bound inside the expression or passed as variables
// shadow a package and are not imported.
func builtinImports(src string, vars []string) ([]string, error) {
	expr, err := parser.ParseExpr("expr", src)
	if err != nil {
		return nil, err
	}

	bound := make(map[string]bool, len(vars))
	for _, v := range vars {
		bound[v] = true
	}
	var used []string
	ast.Walk(expr, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.LetClause:
			bound[n.Ident.Name] = true
		case *ast.ForClause:
			if n.Key != nil {
				bound[n.Key.Name] = true
			}
			if n.Value != nil {
				bound[n.Value.Name] = true
			}
		case *ast.Field:
			if id, ok := n.Label.(*ast.Ident); ok {
				bound[id.Name] = true
			}
		case *ast.SelectorExpr:
			if id, ok := n.X.(*ast.Ident); ok && slices.Contains(builtinPackages, id.Name) && !slices.Contains(used, id.Name) {
				used = append(used, id.Name)
			}
		}
		return true
	}, nil)

	used = slices.DeleteFunc(used, func(pkg string) bool { return bound[pkg] })
	if len(used) == 0 {
		return nil, nil
	}
	return used, nil
}
