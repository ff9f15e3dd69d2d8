package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfig = `
edges:
  - id: E1
    region: eu
    capacity: 100
  - id: E2
    capacity: 50
catalog:
  - id: C1
    size: 40
    type: video
experiment:
  predictive: true
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ashedge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestValidate verifies a valid config is summarized.
func TestValidate(t *testing.T) {
	out, err := run(t, "validate")
	require.NoError(t, err)
	require.Contains(t, out, "2 edges, total capacity 150, 1 catalog items, origin static, predictive true")
}

// TestValidate_MissingFile verifies a missing config fails.
func TestValidate_MissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, cmd.Execute())
}

// TestCycle verifies a one-off cycle without traffic runs and reports its status.
func TestCycle(t *testing.T) {
	out, err := run(t, "cycle")
	require.NoError(t, err)
	require.Contains(t, out, "status=ran mode=predictive")
}

// TestMode verifies the mode can be shown and flipped.
func TestMode(t *testing.T) {
	out, err := run(t, "mode", "baseline")
	require.NoError(t, err)
	require.Contains(t, out, "baseline since")

	_, err = run(t, "mode", "sideways")
	require.Error(t, err)
}
