package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// DefaultPreviewRows is how many rows a dry-run preview shows.
const DefaultPreviewRows = 10

// OutputOptions configures CLI output behavior.
type OutputOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
}

// PrintExecutionResult displays the run result. Failures are always printed;
// successful runs print nothing in quiet mode.
func PrintExecutionResult(w io.Writer, result *sift.ExecutionResult, err error, opts OutputOptions) {
	if result == nil {
		fmt.Fprintln(w, "✗ No execution result available")
		if err != nil {
			fmt.Fprintf(w, "  Error: %v\n", err)
		}
		return
	}

	if err != nil || result.Status == sift.StatusError {
		fmt.Fprintln(w, "✗ Job failed")
		if result.Error != nil {
			fmt.Fprintf(w, "  Stage: %s\n", result.Error.Stage)
			if result.Error.Kind != "" {
				fmt.Fprintf(w, "  Kind: %s\n", result.Error.Kind)
			}
			fmt.Fprintf(w, "  Error: %s\n", result.Error.Message)
		} else if err != nil {
			fmt.Fprintf(w, "  Error: %v\n", err)
		}
		printDiagnostics(w, result.Diagnostics)
		return
	}

	if opts.Quiet {
		return
	}

	fmt.Fprintf(w, "%s %s\n", statusGlyph(result.Status), statusLine(result))
	renderTable(w, []string{"Field", "Value"}, summaryRows(result, opts.Verbose))

	if len(result.Artifacts) > 0 {
		fmt.Fprintln(w)
		rows := make([][]string, 0, len(result.Artifacts))
		for _, a := range result.Artifacts {
			rows = append(rows, []string{a.Format, a.Path, strconv.Itoa(a.Records)})
		}
		renderTable(w, []string{"Format", "Path", "Records"}, rows)
	}

	printDiagnostics(w, result.Diagnostics)

	if result.DryRun {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "ℹ No outputs were written (dry-run mode)")
	}
}

func statusGlyph(status string) string {
	switch status {
	case sift.StatusSuccess:
		return "✓"
	case sift.StatusError:
		return "✗"
	default:
		return "ℹ"
	}
}

func statusLine(result *sift.ExecutionResult) string {
	switch result.Status {
	case sift.StatusUnchanged:
		return fmt.Sprintf("Job %s skipped: source unchanged since last run", result.JobName)
	case sift.StatusEmpty:
		return fmt.Sprintf("Job %s finished with nothing to write", result.JobName)
	default:
		return fmt.Sprintf("Job %s completed", result.JobName)
	}
}

func summaryRows(result *sift.ExecutionResult, verbose bool) [][]string {
	rows := [][]string{
		{"Status", result.Status},
		{"Source", result.SourcePath},
		{"Rows loaded", strconv.Itoa(result.RowsLoaded)},
		{"Rows matched", strconv.Itoa(result.RowsMatched)},
		{"Rows written", strconv.Itoa(result.RowsWritten())},
	}
	if len(result.AppliedFilters) > 0 {
		rows = append(rows, []string{"Filters", strings.Join(result.AppliedFilters, ", ")})
	}
	if len(result.OutputColumns) > 0 {
		rows = append(rows, []string{"Columns", strings.Join(result.OutputColumns, ", ")})
	}
	if len(result.DroppedFilterColumns) > 0 {
		rows = append(rows, []string{"Ignored filters", strings.Join(result.DroppedFilterColumns, ", ")})
	}
	if len(result.DroppedOutputColumns) > 0 {
		rows = append(rows, []string{"Ignored columns", strings.Join(result.DroppedOutputColumns, ", ")})
	}
	if verbose {
		rows = append(rows,
			[]string{"Run ID", result.RunID},
			[]string{"Duration", result.Duration().String()},
		)
	}
	return rows
}

func printDiagnostics(w io.Writer, diags []sift.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Diagnostics:")
	for _, d := range diags {
		fmt.Fprintf(w, "  ⚠ [%s] %s\n", d.Kind, d.Message)
	}
}

// PrintColumns prints the discovered header of a table and its row count.
func PrintColumns(w io.Writer, table *record.Table) {
	if table == nil || table.Header == nil {
		fmt.Fprintln(w, "✗ No columns found")
		return
	}
	source := table.Source
	if table.Sheet != "" {
		source = fmt.Sprintf("%s [%s]", source, table.Sheet)
	}
	fmt.Fprintf(w, "%s: %d columns, %d rows\n", source, table.Header.Len(), table.Len())

	rows := make([][]string, 0, table.Header.Len())
	for i, name := range table.Header.Names() {
		rows = append(rows, []string{strconv.Itoa(i + 1), name})
	}
	renderTable(w, []string{"#", "Column"}, rows)
}

// PrintPreview prints up to limit records of table. A limit <= 0 uses
// DefaultPreviewRows.
func PrintPreview(w io.Writer, table *record.Table, limit int) {
	if table == nil || table.Header == nil {
		return
	}
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	n := min(limit, table.Len())

	rows := make([][]string, 0, n)
	for _, rec := range table.Records[:n] {
		row := make([]string, rec.Len())
		for i := range row {
			row[i] = rec.At(i).String()
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Preview (%d of %d rows):\n", n, table.Len())
	renderTable(w, table.Header.Names(), rows)
}

// PrintJobSummary prints the main fields of a valid job.
func PrintJobSummary(w io.Writer, job *sift.Job) {
	if job == nil {
		return
	}
	fmt.Fprintf(w, "  Job: %s\n", job.Name)
	fmt.Fprintf(w, "  Source: %s\n", job.Source.Path)
	if len(job.Filters) > 0 {
		fmt.Fprintf(w, "  Filters: %d\n", len(job.Filters))
	}
	if job.Where != "" {
		fmt.Fprintf(w, "  Where: %s\n", job.Where)
	}
	if len(job.OutputColumns) > 0 {
		fmt.Fprintf(w, "  Columns: %s\n", strings.Join(job.OutputColumns, ", "))
	}
	for _, o := range job.Outputs {
		fmt.Fprintf(w, "  Output: %s -> %s\n", o.Format, o.Path)
	}
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.Header(toAny(header)...)
	for _, row := range rows {
		if err := table.Append(toAny(row)...); err != nil {
			fmt.Fprintf(w, "  (table error: %v)\n", err)
			return
		}
	}
	if err := table.Render(); err != nil {
		fmt.Fprintf(w, "  (table error: %v)\n", err)
	}
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
