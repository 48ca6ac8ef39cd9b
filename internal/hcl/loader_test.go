package hcl

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/cashgrid/internal/batch"
	"github.com/vk/cashgrid/internal/ctxlog"
	"github.com/vk/cashgrid/internal/expand"
	"github.com/vk/cashgrid/internal/tables"
	"github.com/vk/cashgrid/internal/testutil"
)

func load(t *testing.T, path string) error {
	t.Helper()
	_, err := NewLoader().Load(testContext(t), path)
	return err
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestLoadDirectory(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"project.hcl": `
project {
  max_t      = 120
  main_model = "Main"
  out_dir    = "out"
  workers    = 2
}

model "Main" {
  script_file = "models/main.txt"
}

model "Rider" {
  script = <<EOT
x -- 1
EOT
}

model_points {
  file = "data/points.csv"
}

monitor {
  url       = "http://localhost:3000"
  namespace = "/progress"
  interval  = "500ms"
}
`,
		"tables.hcl": `
assumption "Mort|M" {
  when  = ["Age > 40"]
  rates = concat([0.001, 0.002], [for i in range(2) : 0.5])
}

assumptions {
  file = "data/assum.csv"
}

expense "Term" {
  rider    = "ADB"
  when     = ["Age < 60"]
  formulas = { maint = "SA * 0.001" }
}

table "summary" {
  column "lx" {
    value  = "lx[t]"
    range  = "0~MaxT"
    format = "%.4f"
  }
  column "age" {
    value = "Age"
  }
}
`,
		"models/main.txt": "//survivors\nlx -- If(t=0,1,lx[t-1]*0.99)\n",
		"data/points.csv": "Age:int,Sex\n30~31,M\n",
		"data/assum.csv":  "Model,Key1,Key2,Cond1,R0,R1\nMain,Lapse,,Duration > 1,0.1,0.05\n",
		"README.md":       "not a project file",
	})

	p, err := NewLoader().Load(testContext(t), dir)
	require.NoError(t, err)

	assert.Equal(t, dir, p.Dir)
	assert.Equal(t, 120, p.MaxT)
	assert.Equal(t, "Main", p.MainModel)
	assert.Equal(t, filepath.Join(dir, "out"), p.OutDir)
	assert.Equal(t, 2, p.Workers)

	require.Len(t, p.Models, 2)
	main := p.Model("Main")
	require.NotNil(t, main)
	assert.Equal(t, filepath.Join(dir, "models", "main.txt"), main.Path)
	require.Len(t, main.Definitions, 1)
	assert.Equal(t, "survivors", main.Definitions[0].Description)
	assert.Empty(t, p.Model("Rider").Path)

	require.NotNil(t, p.Points)
	assert.Equal(t, []string{"Age", "Sex"}, p.Points.Headers)
	assert.Equal(t, []expand.ColumnType{expand.TypeInt, expand.TypeString}, p.Points.Types)
	assert.Equal(t, [][]string{{"30~31", "M"}}, p.Points.Rows)

	wantAssum := []tables.AssumptionRow{
		{Key: "Mort|M", Conditions: []string{"Age > 40"}, Rates: []float64{0.001, 0.002, 0.5, 0.5}},
		{Model: "Main", Key: "Lapse", Conditions: []string{"Duration > 1"}, Rates: []float64{0.1, 0.05}},
	}
	if diff := cmp.Diff(wantAssum, p.Assumptions); diff != "" {
		t.Errorf("assumptions mismatch (-want +got):\n%s", diff)
	}

	wantExp := []tables.ExpenseRow{
		{Product: "Term", Rider: "ADB", Conditions: []string{"Age < 60"}, Formulas: map[string]string{"maint": "SA * 0.001"}},
	}
	if diff := cmp.Diff(wantExp, p.Expenses); diff != "" {
		t.Errorf("expenses mismatch (-want +got):\n%s", diff)
	}

	wantCols := []batch.Column{
		{Table: "summary", Name: "lx", Value: "lx[t]", Range: "0~MaxT", Format: "%.4f"},
		{Table: "summary", Name: "age", Value: "Age"},
	}
	if diff := cmp.Diff(wantCols, p.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, p.Monitor)
	assert.Equal(t, "http://localhost:3000", p.Monitor.URL)
	assert.Equal(t, "/progress", p.Monitor.Namespace)
	assert.Equal(t, 500*time.Millisecond, p.Monitor.Interval)
}

func TestLoadInlinePoints(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"p.hcl": `
model "Main" {
  script = "x -- Age"
}

model_points {
  columns = { Age = int, "Sex" = "string", Rate = double }
  rows    = [[30, "M", 0.5], ["40~41"]]
}

monitor {
  url = "http://localhost:3000"
}
`,
	})

	p, err := NewLoader().Load(testContext(t), filepath.Join(dir, "p.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "Main", p.MainModel, "first model is the default main model")
	assert.Zero(t, p.MaxT)
	assert.Equal(t, []string{"Age", "Sex", "Rate"}, p.Points.Headers)
	assert.Equal(t, []expand.ColumnType{expand.TypeInt, expand.TypeString, expand.TypeDouble}, p.Points.Types)
	assert.Equal(t, [][]string{{"30", "M", "0.5"}, {"40~41"}}, p.Points.Rows)
	assert.Equal(t, "/", p.Monitor.Namespace)
	assert.Equal(t, DefaultMonitorInterval, p.Monitor.Interval)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "syntax error",
			files: map[string]string{"a.hcl": `model "Main" {`},
			want:  "failed to parse HCL file",
		},
		{
			name:  "unknown attribute",
			files: map[string]string{"a.hcl": "model \"Main\" {\n  script = \"x -- 1\"\n  bogus = 1\n}\n"},
			want:  "failed to decode HCL file",
		},
		{
			name:  "no models",
			files: map[string]string{"a.hcl": "project {\n  max_t = 10\n}\n"},
			want:  "project defines no models",
		},
		{
			name:  "duplicate model across files",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\n", "b.hcl": "model \"M\" {\n  script = \"y -- 1\"\n}\n"},
			want:  `model "M" defined more than once`,
		},
		{
			name:  "missing script",
			files: map[string]string{"a.hcl": "model \"M\" {\n}\n"},
			want:  "script or script_file is required",
		},
		{
			name:  "both scripts",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n  script_file = \"m.txt\"\n}\n"},
			want:  "mutually exclusive",
		},
		{
			name:  "script parse error",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\\nx -- 2\"\n}\n"},
			want:  `cell "x" already defined`,
		},
		{
			name:  "unknown main model",
			files: map[string]string{"a.hcl": "project {\n  main_model = \"Nope\"\n}\nmodel \"M\" {\n  script = \"x -- 1\"\n}\n"},
			want:  `main_model "Nope" is not defined`,
		},
		{
			name:  "bad rates",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\nassumption \"k\" {\n  rates = [\"a\"]\n}\n"},
			want:  "rates must be a list of numbers",
		},
		{
			name:  "bad column type",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\nmodel_points {\n  columns = { Age = integer128 }\n}\n"},
			want:  `column "Age"`,
		},
		{
			name:  "bad interval",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\nmonitor {\n  url = \"x\"\n  interval = \"soon\"\n}\n"},
			want:  "invalid interval",
		},
		{
			name:  "missing points file",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\nmodel_points {\n  file = \"nope.csv\"\n}\n"},
			want:  "model_points",
		},
		{
			name:  "duplicate table",
			files: map[string]string{"a.hcl": "model \"M\" {\n  script = \"x -- 1\"\n}\ntable \"t\" {\n}\ntable \"t\" {\n}\n"},
			want:  `table "t" defined more than once`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := testutil.WriteFiles(t, tc.files)
			err := load(t, dir)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadMissingPath(t *testing.T) {
	err := load(t, filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "error accessing project path")

	err = load(t, t.TempDir())
	assert.ErrorContains(t, err, "no .hcl files found")
}

func TestDecodeRatesFunctions(t *testing.T) {
	dir := testutil.WriteFiles(t, map[string]string{
		"a.hcl": `
model "M" {
  script = "x -- 1"
}

assumption "k" {
  rates = reverse(slice([for i in range(5) : i / 10], 1, 4))
}
`,
	})
	p, err := NewLoader().Load(testContext(t), dir)
	require.NoError(t, err)
	require.Len(t, p.Assumptions, 1)
	assert.InDeltaSlice(t, []float64{0.3, 0.2, 0.1}, p.Assumptions[0].Rates, 1e-12)
}
