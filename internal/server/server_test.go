package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/field"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/logging"
	"github.com/roach88/rdialog/internal/provider"
	"github.com/roach88/rdialog/internal/store"
)

// greetDialog derives a title from a name. An empty name is a declared
// failure and "boom" an unexpected one.
func greetDialog(t *testing.T, opts ...engine.Option) *engine.Dialog {
	t.Helper()
	tree, err := field.NewTree(field.Object("", []*field.Field{
		field.Scalar("name", ir.FieldString, field.WithReference("name")),
		field.Scalar("title", ir.FieldString, field.WithProvider(&provider.Func{
			Name: "title",
			Deps: []provider.Dependency{provider.Ref("name")},
			Fn: func(in provider.Inputs) (ir.Value, error) {
				name, _ := in.At(0).(ir.String)
				switch name {
				case "":
					return nil, provider.Fail("no name")
				case "boom":
					return nil, errors.New("greeting service down")
				}
				return ir.String("Hello " + string(name)), nil
			},
		})),
	}))
	require.NoError(t, err)

	opts = append([]engine.Option{
		engine.WithLogger(logging.NewNop()),
		engine.WithPassIDs(engine.NewFixedGenerator("p1", "p2", "p3")),
	}, opts...)
	d, err := engine.NewDialog("greet", tree, opts...)
	require.NoError(t, err)
	return d
}

func newHandler(t *testing.T, d *engine.Dialog, opts ...Option) http.Handler {
	t.Helper()
	opts = append([]Option{WithLogger(logging.NewNop())}, opts...)
	s, err := New([]*engine.Dialog{d}, opts...)
	require.NoError(t, err)
	return s.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func valueRequest(name string) string {
	return fmt.Sprintf(`{
		"trigger_kind": "value",
		"trigger_target": "name",
		"dependency_values": {"name": [{"indices": [], "value": %q}]}
	}`, name)
}

func TestHealthz(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestListDialogs(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodGet, "/dialogs", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dialogs":["greet"]}`, w.Body.String())
}

func TestTrigger(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/trigger", valueRequest("Ada"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"pass_id": "p1",
		"updates": [{
			"destination": {"kind": "field", "location": "/title"},
			"values": [{"indices": [], "value": "Hello Ada"}]
		}]
	}`, w.Body.String())
}

func TestTrigger_DeclaredFailureIsNotAnError(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/trigger", valueRequest(""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pass_id": "p1", "updates": []}`, w.Body.String())
}

func TestTrigger_FatalHidesDetails(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/trigger", valueRequest("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error": "could not update dialog"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "greeting service")
}

func TestTrigger_RequestErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"unknown dialog", "/dialogs/nope/trigger", valueRequest("Ada"), http.StatusNotFound},
		{"invalid json", "/dialogs/greet/trigger", `{"trigger_kind":`, http.StatusBadRequest},
		{"unknown reference", "/dialogs/greet/trigger", `{"trigger_kind":"value","trigger_target":"age"}`, http.StatusBadRequest},
		{"missing value", "/dialogs/greet/trigger", `{"trigger_kind":"value","trigger_target":"name"}`, http.StatusBadRequest},
		{"unknown button", "/dialogs/greet/trigger", `{"trigger_kind":"button","trigger_target":"go"}`, http.StatusBadRequest},
	}

	h := newHandler(t, greetDialog(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestTrigger_BodyTooLarge(t *testing.T) {
	body := `{"trigger_kind":"open","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/trigger", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPatch(t *testing.T) {
	body := `{"request": ` + valueRequest("Ada") + `, "form": {"name": "Ada", "title": "old"}}`
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/patch", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"pass_id": "p1",
		"updates": [{
			"destination": {"kind": "field", "location": "/title"},
			"values": [{"indices": [], "value": "Hello Ada"}]
		}],
		"form": {"name": "Ada", "title": "Hello Ada"}
	}`, w.Body.String())
}

func TestPatch_EmptyForm(t *testing.T) {
	body := `{"request": ` + valueRequest("Ada") + `}`
	w := do(newHandler(t, greetDialog(t)), http.MethodPost, "/dialogs/greet/patch", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"pass_id": "p1",
		"updates": [{
			"destination": {"kind": "field", "location": "/title"},
			"values": [{"indices": [], "value": "Hello Ada"}]
		}],
		"form": {"title": "Hello Ada"}
	}`, w.Body.String())
}

func TestGraph(t *testing.T) {
	h := newHandler(t, greetDialog(t))

	w := do(h, http.MethodGet, "/dialogs/greet/graph", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "graph TD\n"))
	assert.Contains(t, w.Body.String(), "r_name --> p_title")
	assert.NotContains(t, w.Body.String(), "classDef planned")

	w = do(h, http.MethodGet, "/dialogs/greet/graph?trigger_kind=value&target=name", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class p_title planned;")

	w = do(h, http.MethodGet, "/dialogs/greet/graph?trigger_kind=value&target=age", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasses(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trace.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := newHandler(t, greetDialog(t, engine.WithRecorder(st)), WithPasses(st))
	require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/dialogs/greet/trigger", valueRequest("Ada")).Code)
	require.Equal(t, http.StatusInternalServerError, do(h, http.MethodPost, "/dialogs/greet/trigger", valueRequest("boom")).Code)

	w := do(h, http.MethodGet, "/dialogs/greet/passes?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"passes": [
		{"id": "p1", "seq": 1, "trigger": "value:name", "status": "ok", "computes": 1},
		{"id": "p2", "seq": 2, "trigger": "value:name", "status": "fatal", "computes": 0}
	]}`, w.Body.String())

	w = do(h, http.MethodGet, "/dialogs/greet/passes?status=fatal", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"passes": [
		{"id": "p2", "seq": 2, "trigger": "value:name", "status": "fatal", "computes": 0}
	]}`, w.Body.String())

	w = do(h, http.MethodGet, "/dialogs/greet/passes?trigger_kind=open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"passes": []}`, w.Body.String())

	w = do(h, http.MethodGet, "/dialogs/greet/passes?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPasses_Disabled(t *testing.T) {
	w := do(newHandler(t, greetDialog(t)), http.MethodGet, "/dialogs/greet/passes", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := engine.NewMetrics(reg)
	require.NoError(t, err)

	h := newHandler(t, greetDialog(t, engine.WithMetrics(m)), WithGatherer(reg))
	do(h, http.MethodPost, "/dialogs/greet/trigger", valueRequest("Ada"))

	w := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `rdialog_passes_total{dialog="greet",status="ok",trigger="value"} 1`)
}

func TestNew_DuplicateDialog(t *testing.T) {
	d := greetDialog(t)
	_, err := New([]*engine.Dialog{d, d})
	assert.ErrorContains(t, err, `duplicate dialog "greet"`)
}
