package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdialog/internal/config"
)

func newServeTest(t *testing.T, db string) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.Server.ReadTimeout = 3 * time.Second
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", cfg: &cfg},
		Addr:        "127.0.0.1:0",
		Database:    db,
	}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	srv, closer, err := opts.buildServer(context.Background(), dialogsDir, cmd)
	require.NoError(t, err)
	t.Cleanup(func() { closer.Close() })

	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServeDialogs(t *testing.T) {
	ts := newServeTest(t, "")

	code, body := get(t, ts.URL+"/dialogs")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"dialogs":["job"]}`, body)

	code, _ = get(t, ts.URL+"/dialogs/job/passes")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServeRecordsAndCounts(t *testing.T) {
	ts := newServeTest(t, filepath.Join(t.TempDir(), "trace.db"))

	body := `{"trigger_kind":"value","trigger_target":"name","dependency_values":{"name":[{"indices":[],"value":"ada"}]}}`
	resp, err := http.Post(ts.URL+"/dialogs/job/trigger", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		PassID  string            `json:"pass_id"`
		Updates []json.RawMessage `json:"updates"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Updates, 3)

	code, passes := get(t, ts.URL+"/dialogs/job/passes")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, passes, out.PassID)

	code, metrics := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, metrics, `rdialog_passes_total{dialog="job",status="ok",trigger="value"} 1`)
	assert.Contains(t, metrics, "go_goroutines")
}

func TestServeLoadError(t *testing.T) {
	opts := &ServeOptions{RootOptions: &RootOptions{Format: "text"}}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	_, _, err := opts.buildServer(context.Background(), invalidDir, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
