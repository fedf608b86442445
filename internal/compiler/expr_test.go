package compiler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/ir"
)

func TestExprEval(t *testing.T) {
	x := NewExpressions()

	tests := []struct {
		name string
		src  string
		args ir.Array
		want ir.Value
	}{
		{"string concat", `args[0] + "_first"`, ir.Array{ir.String("v1")}, ir.String("v1_first")},
		{"interpolation", `"\(args[0]):\(args[1])"`, ir.Array{ir.String("a"), ir.Int(2)}, ir.String("a:2")},
		{"int arithmetic", `args[0] * 2 + 1`, ir.Array{ir.Int(20)}, ir.Int(41)},
		{"list length", `len(args[0])`, ir.Array{ir.NewArray(ir.Int(1), ir.Int(2))}, ir.Int(2)},
		{"builtin import", `strings.Join(args[0], ",")`, ir.Array{ir.NewArray(ir.String("a"), ir.String("b"))}, ir.String("a,b")},
		{"struct result", `{count: len(args), first: args[0]}`, ir.Array{ir.Bool(true)}, ir.Object{"count": ir.Int(1), "first": ir.Bool(true)}},
		{"null input", `args[0]`, ir.Array{ir.Null{}}, ir.Null{}},
		{"object input", `args[0].name`, ir.Array{ir.Object{"name": ir.String("n")}}, ir.String("n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := x.Compile(tt.src, VarArgs)
			require.NoError(t, err)
			got, err := e.Eval(map[string]ir.Value{VarArgs: tt.args})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprBuiltinImports(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars []string
		want []string
	}{
		{"none", `args[0] + 1`, []string{VarArgs}, nil},
		{"single", `strings.ToUpper(args[0])`, []string{VarArgs}, []string{"strings"}},
		{"first use order", `list.Sum([len(strings.Split(args[0], ",")), math.Abs(-1)])`, []string{VarArgs}, []string{"list", "strings", "math"}},
		{"repeated", `strings.ToUpper(args[0]) + strings.ToLower(args[0])`, []string{VarArgs}, []string{"strings"}},
		{"inside string literal", `"see strings.Split"`, []string{VarArgs}, nil},
		{"inside raw string", `#"see strings.Split"#`, []string{VarArgs}, nil},
		{"field selector", `snapshot.list.count`, []string{VarSnapshot}, nil},
		{"let shadows package", `{let strings = args[0], out: strings.x}.out`, []string{VarArgs}, nil},
		{"variable shadows package", `math.x`, []string{"math"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := builtinImports(tt.src, tt.vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExprQuotedPackageNameCompiles(t *testing.T) {
	x := NewExpressions()

	e, err := x.Compile(`#"see strings.Split"#`, VarArgs)
	require.NoError(t, err)
	got, err := e.Eval(map[string]ir.Value{VarArgs: ir.Array{}})
	require.NoError(t, err)
	assert.Equal(t, ir.String("see strings.Split"), got)
}

func TestExprCompileErrors(t *testing.T) {
	x := NewExpressions()

	_, err := x.Compile(`args[0] +`, VarArgs)
	assert.Error(t, err, "syntax error")

	_, err = x.Compile(`nope + 1`, VarArgs)
	assert.Error(t, err, "unknown identifier")
}

func TestExprEvalErrors(t *testing.T) {
	x := NewExpressions()

	e, err := x.Compile(`args[0] + 1`, VarArgs)
	require.NoError(t, err)
	_, err = e.Eval(map[string]ir.Value{VarArgs: ir.Array{ir.String("a")}})
	assert.Error(t, err, "type mismatch")

	_, err = e.Eval(nil)
	assert.Error(t, err, "unbound variable is incomplete")

	f, err := x.Compile(`args[0] / 2`, VarArgs)
	require.NoError(t, err)
	_, err = f.Eval(map[string]ir.Value{VarArgs: ir.Array{ir.Int(3)}})
	assert.Error(t, err, "floats are forbidden")
}

func TestExprBool(t *testing.T) {
	x := NewExpressions()
	e, err := x.Compile(`args[0] == ""`, VarArgs)
	require.NoError(t, err)

	b, err := e.Bool(map[string]ir.Value{VarArgs: ir.Array{ir.String("")}})
	require.NoError(t, err)
	assert.True(t, b)

	b, err = e.Bool(map[string]ir.Value{VarArgs: ir.Array{ir.String("x")}})
	require.NoError(t, err)
	assert.False(t, b)

	n, err := x.Compile(`len(args)`, VarArgs)
	require.NoError(t, err)
	_, err = n.Bool(map[string]ir.Value{VarArgs: ir.Array{}})
	assert.Error(t, err)
}

func TestExprConcurrentEval(t *testing.T) {
	x := NewExpressions()
	e, err := x.Compile(`args[0] * 3`, VarArgs)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]ir.Value, 32)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.Eval(map[string]ir.Value{VarArgs: ir.Array{ir.Int(i)}})
			if err == nil {
				results[i] = v
			}
		}()
	}
	wg.Wait()

	for i, v := range results {
		assert.Equal(t, ir.Int(i*3), v)
	}
}

func TestExprString(t *testing.T) {
	x := NewExpressions()
	e, err := x.Compile(`args[0]`, VarArgs)
	require.NoError(t, err)
	assert.Equal(t, "args[0]", e.String())
}
