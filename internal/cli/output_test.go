package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rowsift/runtime/internal/config"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

func sampleTable(t *testing.T) *record.Table {
	t.Helper()
	h, err := record.NewHeader([]string{"Number", "Dept"})
	if err != nil {
		t.Fatal(err)
	}
	var recs []record.Record
	for i := 1; i <= 12; i++ {
		recs = append(recs, record.New(h, []record.Value{record.Text("VR" + string(rune('A'+i-1))), record.Text("IT")}))
	}
	return &record.Table{Header: h, Records: recs, Source: "extract.xlsx", Sheet: "Sheet1"}
}

func TestPrintExecutionResult_Success(t *testing.T) {
	start := time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC)
	result := &sift.ExecutionResult{
		RunID:                "run-1",
		JobName:              "weekly",
		Status:               sift.StatusSuccess,
		SourcePath:           "in/extract.xlsx",
		StartedAt:            start,
		CompletedAt:          start.Add(1500 * time.Millisecond),
		RowsLoaded:           10,
		RowsMatched:          4,
		AppliedFilters:       []string{"Dept"},
		DroppedFilterColumns: []string{"Regoin"},
		Artifacts:            []sift.Artifact{{Format: "json", Path: "out/a.json", Records: 4}},
		Diagnostics:          []sift.Diagnostic{{Kind: "unknown_filter_column", Column: "Regoin", Message: `filter column "Regoin" not found`}},
	}

	var buf bytes.Buffer
	PrintExecutionResult(&buf, result, nil, OutputOptions{Verbose: true})
	out := buf.String()

	for _, want := range []string{"✓ Job weekly completed", "in/extract.xlsx", "out/a.json", "Regoin", "run-1", "1.5s", "unknown_filter_column"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintExecutionResult_Quiet(t *testing.T) {
	var buf bytes.Buffer
	PrintExecutionResult(&buf, &sift.ExecutionResult{Status: sift.StatusSuccess}, nil, OutputOptions{Quiet: true})
	if buf.Len() != 0 {
		t.Errorf("quiet success should print nothing, got %q", buf.String())
	}
}

func TestPrintExecutionResult_Failure(t *testing.T) {
	result := &sift.ExecutionResult{
		Status: sift.StatusError,
		Error:  &sift.ExecutionError{Stage: "project", Kind: "no_valid_columns", Message: "none of the requested columns exist"},
	}
	var buf bytes.Buffer
	PrintExecutionResult(&buf, result, errors.New("project stage: failed"), OutputOptions{Quiet: true})
	out := buf.String()
	for _, want := range []string{"✗ Job failed", "project", "no_valid_columns", "none of the requested columns exist"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintExecutionResult_Statuses(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{sift.StatusUnchanged, "source unchanged"},
		{sift.StatusEmpty, "nothing to write"},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var buf bytes.Buffer
			PrintExecutionResult(&buf, &sift.ExecutionResult{JobName: "j", Status: tt.status}, nil, OutputOptions{})
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestPrintExecutionResult_DryRunAndNil(t *testing.T) {
	var buf bytes.Buffer
	PrintExecutionResult(&buf, &sift.ExecutionResult{Status: sift.StatusSuccess, DryRun: true}, nil, OutputOptions{})
	if !strings.Contains(buf.String(), "dry-run") {
		t.Errorf("dry-run note missing:\n%s", buf.String())
	}

	buf.Reset()
	PrintExecutionResult(&buf, nil, errors.New("boom"), OutputOptions{})
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("nil result should print the error, got %q", buf.String())
	}
}

func TestPrintColumns(t *testing.T) {
	var buf bytes.Buffer
	PrintColumns(&buf, sampleTable(t))
	out := buf.String()
	if !strings.Contains(out, "extract.xlsx [Sheet1]: 2 columns, 12 rows") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "Number") || !strings.Contains(out, "Dept") {
		t.Errorf("missing column names:\n%s", out)
	}
}

func TestPrintPreview(t *testing.T) {
	var buf bytes.Buffer
	PrintPreview(&buf, sampleTable(t), 0)
	out := buf.String()
	if !strings.Contains(out, "Preview (10 of 12 rows)") {
		t.Errorf("missing preview header:\n%s", out)
	}
	if !strings.Contains(out, "VRJ") || strings.Contains(out, "VRK") {
		t.Errorf("preview should stop at the tenth row:\n%s", out)
	}

	buf.Reset()
	PrintPreview(&buf, nil, 5)
	if buf.Len() != 0 {
		t.Error("nil table should print nothing")
	}
}

func TestPrintJobSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintJobSummary(&buf, &sift.Job{
		Name:          "weekly",
		Source:        sift.SourceConfig{Path: "in.xlsx"},
		Filters:       map[string]interface{}{"Dept": "IT"},
		OutputColumns: []string{"Number", "Dept"},
		Outputs:       []sift.SinkConfig{{Format: "csv", Path: "out.csv"}},
	})
	for _, want := range []string{"Job: weekly", "Source: in.xlsx", "Filters: 1", "Columns: Number, Dept", "csv -> out.csv"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("summary missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPrintParseErrors(t *testing.T) {
	var buf bytes.Buffer
	PrintParseErrors(&buf, []config.ParseError{
		{Path: "job.json", Line: 3, Column: 7, Message: "unexpected token", Type: config.ErrorTypeSyntax},
		{Message: "no location"},
	}, true)
	out := buf.String()
	for _, want := range []string{"job.json:3:7: unexpected token", "  no location", "Type: syntax"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintValidationErrors(t *testing.T) {
	errs := []config.ValidationError{
		{Path: "/job/source", Section: config.SectionSource, Field: "source", Type: "required", Message: "missing property 'path'"},
		{Path: "/job/outputs/1/sheet", Section: config.SectionOutputs, Field: "outputs[1].sheet", Type: "range", Message: "maxLength: got 40, want 31"},
		{Message: strings.Repeat("x", 100)},
	}

	var buf bytes.Buffer
	PrintValidationErrors(&buf, errs, false, false)
	out := buf.String()
	for _, want := range []string{
		"source (/job/source): missing property 'path'",
		"outputs[1].sheet (/job/outputs/1/sheet): maxLength",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("compact error %q missing:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "  /: "+strings.Repeat("x", 77)+"...") {
		t.Errorf("long message should be truncated:\n%s", out)
	}
	if !strings.Contains(out, "Hint:") {
		t.Error("hint should be shown when not quiet")
	}

	buf.Reset()
	PrintValidationErrors(&buf, errs, true, true)
	verbose := buf.String()
	for _, want := range []string{"  outputs[1].sheet:", "Pointer: /job/outputs/1/sheet", "Section: outputs", "Type: required"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("verbose output missing %q:\n%s", want, verbose)
		}
	}
	if strings.Contains(verbose, "Hint:") {
		t.Errorf("quiet output should not carry the hint:\n%s", verbose)
	}
}

func TestFormatErrorLocation(t *testing.T) {
	tests := []struct {
		path         string
		line, column int
		want         string
	}{
		{"", 3, 4, ""},
		{"a.yaml", 0, 0, "a.yaml"},
		{"a.yaml", 3, 0, "a.yaml:3"},
		{"a.yaml", 3, 4, "a.yaml:3:4"},
	}
	for _, tt := range tests {
		if got := formatErrorLocation(tt.path, tt.line, tt.column); got != tt.want {
			t.Errorf("formatErrorLocation(%q, %d, %d) = %q, want %q", tt.path, tt.line, tt.column, got, tt.want)
		}
	}
}
