package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/testutil"
)

const project = `
model "Main" {
  script = <<EOT
lx -- If(t=0,1,lx[t-1]*0.5)
EOT
}

model_points {
  columns = { Age = int }
  rows    = [["30"]]
}

table "out" {
  column "lx" {
    value = "lx[t]"
    range = "0~1"
  }
}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	logs := &testutil.SafeBuffer{}
	err := Execute(context.Background(), args, out, logs)
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("--- Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return out.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), "want *ExitError, got %T: %v", err, err)
	return exitErr.Code
}

func TestHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "cashgrid run PROJECT")
}

func TestUsageErrors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown flag", args: []string{"run", "--this-is-not-a-valid-flag", "p"}, want: "unknown flag: --this-is-not-a-valid-flag"},
		{name: "missing project", args: []string{"run"}, want: "accepts 1 arg(s), received 0"},
		{name: "eval missing cell", args: []string{"eval", "p"}, want: "accepts 2 arg(s), received 1"},
		{name: "bad log level", args: []string{"check", "--log-level", "loud", "p"}, want: "invalid log-level"},
		{name: "bad log format", args: []string{"check", "--log-format", "xml", "p"}, want: "invalid log-format"},
		{name: "negative workers", args: []string{"run", "--workers", "-2", "p"}, want: "workers must not be negative"},
		{name: "unknown command", args: []string{"frobnicate"}, want: "unknown command"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := execute(t, tc.args...)
			require.Error(t, err)
			assert.Equal(t, CodeUsage, exitCode(t, err))
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRunCommand(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"p.hcl": project})
	outDir := filepath.Join(t.TempDir(), "results")

	out, err := execute(t, "run", "--log-level", "debug", "-o", outDir, "-w", "2", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "rows: 1, points: 1, failed: 0")
	assert.Equal(t, "Row\tSub\tAge\tlx[0]\tlx[1]\n1\t1\t30\t1\t0.5\n", testutil.ReadFile(t, filepath.Join(outDir, "out.txt")))
}

func TestRunCommandPartialFailure(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"p.hcl": project + `
table "broken" {
  column "x" {
    value = "Missing.x[t]"
  }
}
`,
	})
	_, err := execute(t, "run", "-o", t.TempDir(), dir)
	require.Error(t, err)
	assert.Equal(t, CodePartialError, exitCode(t, err))
	assert.Contains(t, err.Error(), "1 points failed")
}

func TestEvalCommand(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"p.hcl": project})

	out, err := execute(t, "eval", "-t", "2", "--row", "1", dir, "lx")
	require.NoError(t, err)
	assert.Equal(t, "t\tlx\n0\t1\n1\t0.5\n2\t0.25\n", out)

	_, err = execute(t, "eval", dir, "nothing")
	require.Error(t, err)
	assert.Equal(t, CodeFailure, exitCode(t, err))
}

func TestCheckCommand(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{"p.hcl": project})
	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "model Main: 1 cells, 0 failed")

	bad := testutil.WriteFiles(t, map[string]string{"p.hcl": "model \"Main\" {\n  script = \"x -- Nope(\"\n}\n"})
	_, err = execute(t, "check", bad)
	require.Error(t, err)
	assert.Equal(t, CodeFailure, exitCode(t, err))
	assert.Contains(t, err.Error(), "1 problems found")
}

func TestProjectLoadFailure(t *testing.T) {
	_, err := execute(t, "check", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, CodeFailure, exitCode(t, err))
	assert.Contains(t, err.Error(), "failed to load project")
}
