package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated config and data directory pair.
type testEnv struct {
	t         *testing.T
	ConfigDir string
	DataDir   string
}

func newTestEnv(t *testing.T, configYAML string) *testEnv {
	t.Helper()
	tempDir := t.TempDir()
	env := &testEnv{
		t:         t,
		ConfigDir: filepath.Join(tempDir, "config"),
		DataDir:   filepath.Join(tempDir, "data"),
	}
	if configYAML != "" {
		require.NoError(t, os.MkdirAll(env.ConfigDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(env.ConfigDir, "config.yaml"), []byte(configYAML), 0o644))
	}
	return env
}

type cmdResult struct {
	Stdout string
	Logs   string
	Err    error
}

// ExitCode returns the process exit code the result would produce.
func (r cmdResult) ExitCode() int {
	if r.Err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if errors.As(r.Err, &exitErr) {
		return exitErr.Code
	}
	return exitUserError
}

func (e *testEnv) run(stdin string, args ...string) cmdResult {
	e.t.Helper()
	var out, logs bytes.Buffer
	root := NewRootCmd(&logs)
	root.SetOut(&out)
	root.SetErr(&logs)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config-dir", e.ConfigDir, "--data-dir", e.DataDir, "--family", "leo"}, args...))
	err := root.ExecuteContext(context.Background())
	return cmdResult{Stdout: out.String(), Logs: logs.String(), Err: err}
}

func (e *testEnv) mustRun(stdin string, args ...string) cmdResult {
	e.t.Helper()
	res := e.run(stdin, args...)
	require.NoError(e.t, res.Err, "holdwatch %v\nstdout: %s\nlogs: %s", args, res.Stdout, res.Logs)
	return res
}
