package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/hcl"
	"github.com/vk/cashgrid/internal/testutil"
)

const projectHCL = `
project {
  max_t = 3
}

model "Main" {
  script = <<EOT
q -- Assum("Mort",Sex)[t]
lx -- If(t=0,1,lx[t-1]*(1-q[t-1]))
bad -- Nope(
EOT
}

model_points {
  columns = { Age = int, Sex = string }
  rows    = [["30", "M,F"]]
}

assumption "Mort|M" {
  rates = [0.1, 0.1, 0.1, 0.1]
}

assumption "Mort|F" {
  rates = [for i in range(4) : 0.05]
}

table "lives" {
  column "lx" {
    value  = "lx[t]"
    range  = "0~2"
    format = "join:;"
  }
}
`

// setupApp loads projectHCL into a new App. out captures command output.
func setupApp(t *testing.T, mutate func(*Config)) (*App, *bytes.Buffer, string) {
	t.Helper()
	dir := testutil.WriteFiles(t, map[string]string{"project.hcl": projectHCL})
	cfg, err := NewConfig(Config{ProjectPath: dir, LogLevel: "debug", Workers: 2})
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	logs := &testutil.SafeBuffer{}
	out := &bytes.Buffer{}
	a, err := NewApp(out, logs, cfg, hcl.NewLoader())
	require.NoError(t, err)
	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("--- Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, out, dir
}

func TestNewConfigValidates(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.ErrorContains(t, err, "ProjectPath is a required")

	_, err = NewConfig(Config{ProjectPath: "p", Workers: -1})
	assert.ErrorContains(t, err, "workers must not be negative")

	_, err = NewConfig(Config{ProjectPath: "p", StatusPort: 70000})
	assert.ErrorContains(t, err, "out of range")
}

func TestNewAppLoadFailure(t *testing.T) {
	cfg := &Config{ProjectPath: filepath.Join(t.TempDir(), "missing.hcl")}
	_, err := NewApp(&bytes.Buffer{}, &bytes.Buffer{}, cfg, hcl.NewLoader())
	assert.ErrorContains(t, err, "failed to load project")
}

func TestRunWritesTables(t *testing.T) {
	a, _, dir := setupApp(t, nil)

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 2, summary.Points)
	assert.Zero(t, summary.Failed)

	want := "Row\tSub\tAge\tSex\tlx\n" +
		"1\t1\t30\tM\t1;0.9;0.81\n" +
		"1\t2\t30\tF\t1;0.95;0.9025\n"
	assert.Equal(t, want, testutil.ReadFile(t, filepath.Join(dir, DefaultOutDir, "lives.txt")))
}

func TestRunOutDirOverride(t *testing.T) {
	out := t.TempDir()
	a, _, _ := setupApp(t, func(c *Config) { c.OutDir = out })

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "lives.txt"))
	assert.FileExists(t, filepath.Join(out, batch.ErrorsFile))
}

func TestEval(t *testing.T) {
	a, out, _ := setupApp(t, nil)

	err := a.Eval(context.Background(), EvalRequest{Cell: "lx", T: 2, Row: 1, Sub: 2})
	require.NoError(t, err)
	assert.Equal(t, "t\tq\tlx\n0\t0.05\t1\n1\t0.05\t0.95\n2\t\t0.9025\n", out.String())
}

func TestEvalErrors(t *testing.T) {
	t.Run("unknown cell", func(t *testing.T) {
		a, out, _ := setupApp(t, nil)
		err := a.Eval(context.Background(), EvalRequest{Cell: "nothing", Row: 1})
		require.Error(t, err)
		assert.Contains(t, out.String(), "Error")
	})

	t.Run("sub out of range", func(t *testing.T) {
		a, _, _ := setupApp(t, nil)
		err := a.Eval(context.Background(), EvalRequest{Cell: "lx", Row: 1, Sub: 3})
		assert.ErrorContains(t, err, "has 2 points, requested 3")
	})

	t.Run("row out of range", func(t *testing.T) {
		a, _, _ := setupApp(t, nil)
		err := a.Eval(context.Background(), EvalRequest{Cell: "lx", Row: 5})
		assert.ErrorContains(t, err, "model point row 5")
	})
}

func TestCheckReportsProblems(t *testing.T) {
	a, out, _ := setupApp(t, nil)

	problems, err := a.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, problems)
	assert.Contains(t, out.String(), "model Main: 3 cells, 1 failed\n")
	assert.Contains(t, out.String(), "  bad: ")
	assert.Contains(t, out.String(), "columns: 1, 0 failed\n")
	assert.Contains(t, out.String(), "model points: 1 rows, 2 points\n")
}

func TestStatusEndpoints(t *testing.T) {
	a, _, _ := setupApp(t, nil)
	srv := httptest.NewServer(a.statusHandlers())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var before StatusReport
	getJSON(t, srv.URL+"/status", &before)
	assert.False(t, before.Progress.Running)
	assert.Empty(t, before.Statuses)

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	var after StatusReport
	getJSON(t, srv.URL+"/status", &after)
	assert.Equal(t, batch.Progress{Rows: 1, RowsRun: 1, Points: 2}, after.Progress)
	require.NotEmpty(t, after.Statuses)
	assert.Equal(t, "run started: 1 rows", after.Statuses[0].Message)

	var drained StatusReport
	getJSON(t, srv.URL+"/status", &drained)
	assert.Empty(t, drained.Statuses, "statuses are delivered once")
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
