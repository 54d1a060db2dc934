package main

import (
	"bytes"
	"context"
	"database/sql"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"geoetl/internal/metrics"
)

const tidyPipeline = `
tidy_villages:
  description: trim and rename the village list
  outputs: [cleaned]
  rules:
    - task_name: Trim
      description: trim names
      type: column-level
      action: strip_whitespace
      parameters: { dtype: string, remove_newlines: true }
    - task_name: Rename
      description: friendlier names
      type: schema-level
      action: rename_columns
      output: cleaned
      parameters:
        mappings: { VILLNAME: village }
`

const reprojectPipeline = `
reproject:
  description: move villages to TWD97 TM2
  outputs: [twd97]
  rules:
    - task_name: Reproject
      description: to TM2
      type: schema-level
      action: convert_crs
      output: twd97
      parameters: { to_crs: "EPSG:3826" }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

/*
A csv input bound positionally runs through the pipeline and lands in the
csv sink as a file named after the final alias, row labels first.
*/
func TestRun_CSVToCSV(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "tidy.yaml", tidyPipeline)
	in := writeFile(t, dir, "villages.csv", "VILLNAME,POP\n 中正里 ,1200\n\"大安里\n\",800\n")
	outDir := filepath.Join(dir, "out")

	code, stdout, stderr := runCLI(t, "run", "-c", cfg, in, "--sink", "csv", "--dsn", outDir, "--log-level", "debug")
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	got, err := os.ReadFile(filepath.Join(outDir, "cleaned.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "index,village,POP\n0,中正里,1200\n1,大安里,800\n"
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	for _, s := range []string{"Trim", "rename_columns", "cleaned"} {
		if !strings.Contains(stdout, s) {
			t.Errorf("summary lacks %q:\n%s", s, stdout)
		}
	}
	if !strings.Contains(stderr, "sink: wrote") {
		t.Errorf("missing sink log line:\n%s", stderr)
	}
}

/*
WKT geometries are parsed with the CRS given on the command line,
reprojected, and stored as WKT in SQLite.
*/
func TestRun_ReprojectToSQLite(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "reproject.yaml", reprojectPipeline)
	in := writeFile(t, dir, "points.csv", "name,geometry\norigin,POINT (121 0)\nnorth,POINT (121 1)\n")
	db := filepath.Join(dir, "out.db")

	code, stdout, stderr := runCLI(t, "run", "-c", cfg,
		"--input", "input="+in,
		"--geometry-column", "geometry", "--crs", "EPSG:4326",
		"--sink", "sqlite", "--dsn", db, "--option", "batch_size=1")
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "EPSG:3826") {
		t.Errorf("summary lacks target CRS:\n%s", stdout)
	}

	conn, err := sql.Open("sqlite", db)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	rows, err := conn.Query(`SELECT name, geometry FROM twd97 ORDER BY "index"`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var names []string
	var xs []float64
	for rows.Next() {
		var name, text string
		if err := rows.Scan(&name, &text); err != nil {
			t.Fatal(err)
		}
		g, err := wkt.Unmarshal(text)
		if err != nil {
			t.Fatalf("stored geometry %q: %v", text, err)
		}
		names = append(names, name)
		xs = append(xs, g.(orb.Point).X())
	}
	if diff := cmp.Diff([]string{"origin", "north"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	for _, x := range xs {
		// Points on the central meridian sit on the false easting.
		if math.Abs(x-250000) > 0.01 {
			t.Errorf("easting = %v, want 250000", x)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "tidy.yaml", tidyPipeline)
	in := writeFile(t, dir, "v.csv", "VILLNAME\nx\n")

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no config", []string{"run", in}, "--config is required"},
		{"unknown sink", []string{"run", "-c", cfg, in, "--sink", "parquet"}, `unknown sink "parquet"`},
		{"unbound seed", []string{"run", "-c", cfg, "--input", "other=" + in}, "does not resolve"},
		{"bad binding", []string{"run", "-c", cfg, "--input", "nope"}, "want alias=path|url"},
		{"duplicate binding", []string{"run", "-c", cfg, "--input", "input=" + in, in}, "bound more than once"},
		{"missing file", []string{"run", "-c", cfg, filepath.Join(dir, "absent.csv")}, "input input"},
		{"bad metrics backend", []string{"run", "-c", cfg, in, "--metrics-backend", "graphite"}, "unknown metrics backend"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tc.args...)
			if code != 1 {
				t.Fatalf("exit %d, want 1", code)
			}
			if !strings.Contains(stdout+stderr, tc.want) {
				t.Errorf("output lacks %q\nstdout:\n%s\nstderr:\n%s", tc.want, stdout, stderr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", tidyPipeline)
	typo := writeFile(t, dir, "typo.yaml", strings.Replace(tidyPipeline, "action: rename_columns", "action: rename_column", 1))
	bad := writeFile(t, dir, "bad.yaml", strings.Replace(tidyPipeline, "dtype: string", "dtype: text", 1))

	code, stdout, _ := runCLI(t, "validate", "-c", good)
	if code != 0 || !strings.Contains(stdout, "tidy_villages: ok") {
		t.Errorf("good pipeline: exit %d, stdout %q", code, stdout)
	}

	code, _, stderr := runCLI(t, "validate", "-c", typo)
	if code != 1 || !strings.Contains(stderr, "did you mean 'rename_columns'") {
		t.Errorf("unknown action: exit %d, stderr %q", code, stderr)
	}

	code, stdout, _ = runCLI(t, "validate", "-c", bad)
	if code != 1 || !strings.Contains(stdout, "dtype") {
		t.Errorf("bad parameter: exit %d, stdout %q", code, stdout)
	}

	code, stdout, _ = runCLI(t, "validate", "-c", good, "--input", "seed=x.csv")
	if code != 1 || !strings.Contains(stdout, "no seed dataset supplied") {
		t.Errorf("unbound input: exit %d, stdout %q", code, stdout)
	}
}

/*
GEOETL_ environment variables stand in for flags that were not given.
*/
func TestValidate_ConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEOETL_CONFIG", writeFile(t, dir, "good.yaml", tidyPipeline))

	code, stdout, stderr := runCLI(t, "validate")
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
}

func TestActions(t *testing.T) {
	t.Parallel()

	code, stdout, _ := runCLI(t, "actions")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	for _, s := range []string{"convert_crs", "to_crs", "concat_finalize", "fan-in", "split_duplicates", "fan-out"} {
		if !strings.Contains(stdout, s) {
			t.Errorf("listing lacks %q:\n%s", s, stdout)
		}
	}

	code, stdout, _ = runCLI(t, "actions", "rename_columns")
	if code != 0 || !strings.Contains(stdout, "mappings") || strings.Contains(stdout, "convert_crs") {
		t.Errorf("single action: exit %d\n%s", code, stdout)
	}

	code, _, stderr := runCLI(t, "actions", "rename_colums")
	if code != 1 || !strings.Contains(stderr, "rename_columns") {
		t.Errorf("unknown action: exit %d, stderr %q", code, stderr)
	}
}

func TestSample_LocalCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := writeFile(t, dir, "villages.csv", "name,pop,geometry\na,1,POINT (121 23)\nb,2,POINT (121 24)\nc,3,POINT")

	code, stdout, stderr := runCLI(t, "sample", in, "--bytes", "60", "--geometry-column", "geometry")
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	for _, s := range []string{"format:    csv", "encoding:  utf-8", "(truncated)", "rows:      2", "pop       int", "geometry  geometry", "--input input=" + in} {
		if !strings.Contains(stdout, s) {
			t.Errorf("report lacks %q:\n%s", s, stdout)
		}
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newLogger("warn", "json", &buf)
	l.Info("hidden")
	l.Warn("shown", "k", 1)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("json warn logger wrote %q", buf.String())
	}

	if !newLogger("nonsense", "text", &buf).Enabled(context.Background(), slog.LevelInfo) {
		t.Error("unknown level should mean info")
	}
}

/*
With --trace stdout the spans of the run are exported to stderr when the
command finishes.
*/
func TestRun_TraceStdout(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "tidy.yaml", tidyPipeline)
	in := writeFile(t, dir, "villages.csv", "VILLNAME\nx\n")

	code, stdout, stderr := runCLI(t, "run", "-c", cfg, in, "--trace", "stdout", "--log-level", "error")
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stderr, `"Name": "pipeline tidy_villages"`) {
		t.Errorf("no pipeline span exported:\n%s", stderr)
	}
}

// rowCounter sums geoetl_rows_total by kind.
type rowCounter struct {
	mu   sync.Mutex
	rows map[string]float64
}

func (c *rowCounter) IncCounter(name string, delta float64, labels metrics.Labels) {
	if name != metrics.RowsTotal {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[labels["kind"]] += delta
}
func (c *rowCounter) ObserveHistogram(string, float64, metrics.Labels) {}
func (c *rowCounter) Flush() error                                     { return nil }

/*
Each row is counted once per stage: loaded from the seed, present in a final
dataset and stored by the sink.
*/
func TestRun_RowMetrics(t *testing.T) {
	counter := &rowCounter{rows: map[string]float64{}}
	metrics.SetBackend(counter)
	t.Cleanup(func() { metrics.SetBackend(&rowCounter{rows: map[string]float64{}}) })

	dir := t.TempDir()
	cfg := writeFile(t, dir, "tidy.yaml", tidyPipeline)
	in := writeFile(t, dir, "villages.csv", "VILLNAME,POP\n中正里,1200\n大安里,800\n")

	code, stdout, stderr := runCLI(t, "run", "-c", cfg, in, "--sink", "csv", "--dsn", filepath.Join(dir, "out"))
	if code != 0 {
		t.Fatalf("exit %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	counter.mu.Lock()
	defer counter.mu.Unlock()
	want := map[string]float64{"loaded": 2, "output": 2, "written": 2}
	if diff := cmp.Diff(want, counter.rows); diff != "" {
		t.Errorf("rows by kind (-want +got):\n%s", diff)
	}
}
