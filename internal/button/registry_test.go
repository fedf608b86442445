package button

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/ir"
)

// toggle cycles idle -> running -> done and reports how many fields are
// filled in the snapshot.
func toggle() *Func {
	return &Func{
		StateSet: []State{"idle", "running", "done"},
		Init: func(current ir.Value) (Result, error) {
			if ir.Equal(current, ir.String("finished")) {
				return Result{Value: current, State: "done"}, nil
			}
			return Result{Value: ir.String("Start"), State: "idle"}, nil
		},
		Press: func(state State, snapshot ir.Object) (Result, error) {
			switch state {
			case "idle":
				return Result{Value: ir.String("Stop"), State: "running"}, nil
			case "running":
				return Result{Value: ir.Int(len(snapshot)), State: "done"}, nil
			default:
				return Result{Value: ir.String("Again"), State: "bogus"}, nil
			}
		},
	}
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register("toggle", toggle()))
	return r
}

func TestRegistry_Initialize(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Initialize("toggle", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Value: ir.String("Start"), State: "idle"}, res)

	res, err = r.Initialize("toggle", ir.String("finished"))
	require.NoError(t, err)
	assert.Equal(t, State("done"), res.State)
}

func TestRegistry_InvokeTransitions(t *testing.T) {
	r := newRegistry(t)

	res, err := r.Invoke("toggle", "idle", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Value: ir.String("Stop"), State: "running"}, res)

	snapshot := ir.Object{"a": ir.String("x"), "b": ir.Int(1)}
	res, err = r.Invoke("toggle", "running", snapshot)
	require.NoError(t, err)
	assert.Equal(t, Result{Value: ir.Int(2), State: "done"}, res)
}

func TestRegistry_RejectsUndeclaredStates(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Invoke("toggle", "paused", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownState))

	_, err = r.Invoke("toggle", "done", nil)
	require.Error(t, err, "handler returns an undeclared state")
	assert.True(t, errors.Is(err, ErrUndeclaredResult))
	assert.False(t, errors.Is(err, ErrUnknownState))
}

func TestRegistry_UnknownHandler(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Initialize("missing", nil)
	assert.True(t, errors.Is(err, ErrUnknownHandler))
	_, err = r.Invoke("missing", "idle", nil)
	assert.True(t, errors.Is(err, ErrUnknownHandler))
	_, err = r.States("missing")
	assert.True(t, errors.Is(err, ErrUnknownHandler))
	assert.True(t, errors.Is(r.RegisterUpdate("missing", &UpdateFunc{}), ErrUnknownHandler))
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := newRegistry(t)

	assert.True(t, errors.Is(r.Register("toggle", toggle()), ErrDuplicateHandler))
	assert.Error(t, r.Register("", toggle()))
	assert.Error(t, r.Register("empty", &Func{}))
	assert.Equal(t, []string{"toggle"}, r.Handlers())
	assert.True(t, r.Has("toggle"))
	assert.False(t, r.Has("empty"))
}

func TestRegistry_Updates(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Register("other", &Func{StateSet: []State{"only"}}))

	require.NoError(t, r.RegisterUpdate("toggle", &UpdateFunc{
		Deps: []string{"name"},
		Fn: func(snapshot ir.Object) (ir.Value, error) {
			return ir.String("Start " + string(snapshot["name"].(ir.String))), nil
		},
	}))
	assert.True(t, errors.Is(r.RegisterUpdate("toggle", &UpdateFunc{}), ErrDuplicateHandler))

	assert.Equal(t, []string{"toggle"}, r.UpdatesFor("name"))
	assert.Empty(t, r.UpdatesFor("other"))

	v, err := r.Update("toggle", ir.Object{"name": ir.String("job")})
	require.NoError(t, err)
	assert.Equal(t, ir.String("Start job"), v)

	_, err = r.Update("other", nil)
	assert.Error(t, err)
}

func TestFunc_Defaults(t *testing.T) {
	f := &Func{StateSet: []State{"ready"}}

	res, err := f.Initialize(ir.Int(3))
	require.NoError(t, err)
	assert.Equal(t, Result{Value: ir.Int(3), State: "ready"}, res)

	res, err = f.Invoke("ready", nil)
	require.NoError(t, err)
	assert.Equal(t, State("ready"), res.State)

	_, err = (&Func{}).Initialize(ir.Null{})
	assert.True(t, errors.Is(err, ErrUnknownState))
}
