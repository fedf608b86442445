package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	dialogsDir   = filepath.Join("..", "harness", "testdata", "dialogs")
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
	invalidDir   = filepath.Join("testdata", "invalid")
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// absDialogs returns the fixture dialog directory as an absolute path.
func absDialogs(t *testing.T) string {
	t.Helper()
	dir, err := filepath.Abs(dialogsDir)
	require.NoError(t, err)
	return dir
}
