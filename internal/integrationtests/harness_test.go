package integrationtests

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/app"
	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/hcl"
	"github.com/vk/cashgrid/internal/testutil"
)

// result captures everything a harness run produced.
type result struct {
	App       *app.App
	Dir       string
	Summary   batch.Summary
	Err       error
	LogOutput string
}

// newProjectApp writes files into a temporary project directory and
// loads it with debug logging.
func newProjectApp(t *testing.T, files map[string]string) (*app.App, *bytes.Buffer, *testutil.SafeBuffer, string) {
	t.Helper()
	dir := testutil.WriteFiles(t, files)
	cfg, err := app.NewConfig(app.Config{ProjectPath: dir, LogLevel: "debug"})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	out := &bytes.Buffer{}
	a, err := app.NewApp(out, logs, cfg, hcl.NewLoader())
	require.NoError(t, err)

	t.Cleanup(func() {
		if t.Failed() || os.Getenv(testutil.LogsEnv) == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logs.String())
		}
	})
	return a, out, logs, dir
}

// runProject loads files as a project and runs it to completion.
func runProject(t *testing.T, files map[string]string) result {
	t.Helper()
	a, _, logs, dir := newProjectApp(t, files)
	summary, err := a.Run(context.Background())
	return result{App: a, Dir: dir, Summary: summary, Err: err, LogOutput: logs.String()}
}
