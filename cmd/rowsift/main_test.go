package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sourceCSV = "Number,Dept,Status,Priority\n" +
	"VR001,IT,Active,1\n" +
	"VR002,HR,Active,2\n" +
	"VR003,Eng,Closed,3\n" +
	"VR004,it,Active,2\n"

// testFixturePath returns the path to shared job fixtures.
func testFixturePath(filename string) string {
	return filepath.Join("..", "..", "internal", "config", "testdata", filename)
}

// runCLI runs the CLI in-process and returns stdout, stderr and the exit code.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	var out, errOut bytes.Buffer
	exitCode = execute(args, &out, &errOut)
	return out.String(), errOut.String(), exitCode
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "extract.csv")
	if err := os.WriteFile(path, []byte(sourceCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeJob(t *testing.T, dir, columns string) string {
	t.Helper()
	job := "schemaVersion: \"1.0\"\n" +
		"job:\n" +
		"  name: cli-test\n" +
		"  source:\n" +
		"    path: " + filepath.Join(dir, "extract.csv") + "\n" +
		"  filters:\n" +
		"    Dept: [IT, Eng]\n" +
		"    Regoin: EMEA\n" +
		"  columns: " + columns + "\n" +
		"  outputs:\n" +
		"    - format: json\n" +
		"      path: " + filepath.Join(dir, "out.json") + "\n"
	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte(job), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readJSON(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return rows
}

func TestCLI_Help(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "--help")
	if exitCode != ExitSuccess {
		t.Errorf("expected exit code 0, got %d", exitCode)
	}
	for _, want := range []string{"rowsift", "run", "filter", "validate", "columns", "watch", "version"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestCLI_Version(t *testing.T) {
	stdout, _, exitCode := runCLI(t, "version")
	if exitCode != ExitSuccess || !strings.Contains(stdout, "Version: dev") {
		t.Errorf("version: exit %d, stdout %q", exitCode, stdout)
	}
}

func TestCLI_Validate(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"valid yaml", []string{"validate", testFixturePath("valid-job.yaml")}, ExitSuccess, "Job file is valid", ""},
		{"valid json verbose", []string{"validate", "-v", testFixturePath("valid-job.json")}, ExitSuccess, "Job: vr-extract-it", ""},
		{"parse error", []string{"validate", testFixturePath("invalid-json.json")}, ExitParseError, "", "Parse errors"},
		{"missing file", []string{"validate", testFixturePath("missing.yaml")}, ExitParseError, "", "failed to read file"},
		{"schema error", []string{"validate", testFixturePath("missing-source-path.json")}, ExitValidationError, "", "/job/source"},
		{"no args", []string{"validate"}, ExitRuntimeError, "", "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCLI(t, tt.args...)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr)
			}
			if tt.wantOut != "" && !strings.Contains(stdout, tt.wantOut) {
				t.Errorf("stdout missing %q: %q", tt.wantOut, stdout)
			}
			if tt.wantErr != "" && !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr missing %q: %q", tt.wantErr, stderr)
			}
		})
	}
}

func TestCLI_Run(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)
	job := writeJob(t, dir, "[Number, Status, Owner]")

	stdout, stderr, code := runCLI(t, "run", "--state-dir", "", job)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(stdout, "Job cli-test completed") || !strings.Contains(stdout, "Regoin") {
		t.Errorf("summary missing fields:\n%s", stdout)
	}

	want := []map[string]any{
		{"Number": "VR001", "Status": "Active"},
		{"Number": "VR003", "Status": "Closed"},
		{"Number": "VR004", "Status": "Active"},
	}
	if diff := cmp.Diff(want, readJSON(t, filepath.Join(dir, "out.json"))); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestCLI_RunDryRun(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)
	job := writeJob(t, dir, "[Number]")

	stdout, _, code := runCLI(t, "run", "--dry-run", "--state-dir", "", job)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Preview (3 of 3 rows)") || !strings.Contains(stdout, "dry-run") {
		t.Errorf("dry run output:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.json")); !os.IsNotExist(err) {
		t.Error("dry run must not write outputs")
	}
}

func TestCLI_RunNoValidColumns(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)
	job := writeJob(t, dir, "[Nope, Missing]")

	_, stderr, code := runCLI(t, "run", "--state-dir", "", job)
	if code != ExitRuntimeError {
		t.Errorf("exit code = %d, want %d", code, ExitRuntimeError)
	}
	if !strings.Contains(stderr, "no_valid_columns") {
		t.Errorf("stderr should name the error kind: %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.json")); !os.IsNotExist(err) {
		t.Error("no output should be written")
	}
}

func TestCLI_RunSkipUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)
	job := writeJob(t, dir, "[Number]")
	state := filepath.Join(dir, "state")

	if _, stderr, code := runCLI(t, "run", "--skip-unchanged", "--state-dir", state, job); code != ExitSuccess {
		t.Fatalf("first run exit code = %d, stderr %q", code, stderr)
	}
	stdout, _, code := runCLI(t, "run", "--skip-unchanged", "--state-dir", state, job)
	if code != ExitSuccess {
		t.Fatalf("second run exit code = %d", code)
	}
	if !strings.Contains(stdout, "source unchanged") {
		t.Errorf("second run should be skipped:\n%s", stdout)
	}
}

func TestCLI_RunResetState(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir)
	job := writeJob(t, dir, "[Number]")
	state := filepath.Join(dir, "state")

	if _, stderr, code := runCLI(t, "run", "--skip-unchanged", "--state-dir", state, job); code != ExitSuccess {
		t.Fatalf("first run exit code = %d, stderr %q", code, stderr)
	}
	entries, err := os.ReadDir(state)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one state file, got %v (%v)", entries, err)
	}

	stdout, stderr, code := runCLI(t, "run", "--skip-unchanged", "--reset-state", "--state-dir", state, job)
	if code != ExitSuccess {
		t.Fatalf("reset run exit code = %d, stderr %q", code, stderr)
	}
	if strings.Contains(stdout, "source unchanged") {
		t.Errorf("a reset run must not be skipped:\n%s", stdout)
	}

	stdout, _, _ = runCLI(t, "run", "--skip-unchanged", "--state-dir", state, job)
	if !strings.Contains(stdout, "source unchanged") {
		t.Errorf("the reset run should have saved fresh state:\n%s", stdout)
	}

	// Resetting a job that never ran is not an error.
	fresh := filepath.Join(dir, "fresh-state")
	if _, stderr, code := runCLI(t, "run", "--reset-state", "--state-dir", fresh, job); code != ExitSuccess {
		t.Errorf("reset without state exit code = %d, stderr %q", code, stderr)
	}
}

func TestCLI_Filter(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)
	out := filepath.Join(dir, "adhoc.json")

	_, stderr, code := runCLI(t, "filter", source,
		"--where", "Dept=IT,Eng",
		"--where", "Status=Active",
		"--columns", "Number,Dept",
		"--json", out)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d, stderr %q", code, stderr)
	}

	want := []map[string]any{
		{"Number": "VR001", "Dept": "IT"},
		{"Number": "VR004", "Dept": "it"},
	}
	if diff := cmp.Diff(want, readJSON(t, out)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestCLI_FilterPreviewWithoutOutputs(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir)

	stdout, _, code := runCLI(t, "filter", source, "--expr", "Priority == '2'", "--columns", "Number")
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "Preview (2 of 2 rows)") || !strings.Contains(stdout, "VR004") {
		t.Errorf("preview output:\n%s", stdout)
	}
}

func TestCLI_FilterBadFlags(t *testing.T) {
	source := writeSource(t, t.TempDir())
	tests := [][]string{
		{"filter", source, "--where", "NoEquals", "--columns", "Number"},
		{"filter", source, "--where", "Dept=", "--columns", "Number"},
		{"filter", source, "--on-expr-error", "ignore", "--columns", "Number"},
		{"filter", source, "--lookback-days", "-1", "--columns", "Number"},
	}
	for _, args := range tests {
		if _, _, code := runCLI(t, args...); code != ExitValidationError {
			t.Errorf("%v: exit code = %d, want %d", args, code, ExitValidationError)
		}
	}
}

func TestCLI_Columns(t *testing.T) {
	source := writeSource(t, t.TempDir())

	stdout, _, code := runCLI(t, "columns", source)
	if code != ExitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout, "4 columns, 4 rows") {
		t.Errorf("columns output:\n%s", stdout)
	}
	for _, col := range []string{"Number", "Dept", "Status", "Priority"} {
		if !strings.Contains(stdout, col) {
			t.Errorf("missing column %q", col)
		}
	}

	if _, stderr, code := runCLI(t, "columns", filepath.Join(t.TempDir(), "missing.csv")); code != ExitRuntimeError {
		t.Errorf("missing source: exit code = %d, stderr %q", code, stderr)
	}
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    map[string]interface{}
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"scalar", []string{"Dept=IT"}, map[string]interface{}{"Dept": "IT"}, false},
		{"any-of", []string{"Dept=IT, Eng"}, map[string]interface{}{"Dept": []interface{}{"IT", "Eng"}}, false},
		{"repeated", []string{"Dept=IT", "Dept=HR"}, map[string]interface{}{"Dept": []interface{}{"IT", "HR"}}, false},
		{"empty value", []string{"Owner="}, nil, true},
		{"empty set member", []string{"Dept=IT,,Eng"}, nil, true},
		{"value with equals", []string{"Note=a=b"}, map[string]interface{}{"Note": "a=b"}, false},
		{"missing equals", []string{"Dept"}, nil, true},
		{"missing column", []string{"=IT"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhere(tt.flags)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseWhere() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseWhere() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAdhocJob(t *testing.T) {
	f := adhocFlags{
		sheet:   "IT",
		onError: "skip",
		columns: []string{"Number", " Dept"},
		xlsx:    "out.xlsx",
		sqlite:  "out.db",
		table:   "vr",
	}
	job, err := f.job("dl/Snow_{date}.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if job.Name != "Snow_{date}" || job.Source.Sheet != "IT" {
		t.Errorf("unexpected job %+v", job)
	}
	if diff := cmp.Diff([]string{"Number", "Dept"}, job.OutputColumns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if len(job.Outputs) != 2 || job.Outputs[0].Format != "xlsx" || job.Outputs[1].Table != "vr" {
		t.Errorf("outputs = %+v", job.Outputs)
	}
}
