package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rowsift/runtime/pkg/sift"
)

// adhocFlags are the flags of the filter command.
type adhocFlags struct {
	sheet        string
	format       string
	delimiter    string
	dateFormat   string
	lookbackDays int

	where   []string
	expr    string
	onError string
	columns []string

	xlsx   string
	json   string
	csv    string
	sqlite string
	table  string
}

func (f *adhocFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.sheet, "sheet", "", "Worksheet name (default first sheet)")
	fl.StringVar(&f.format, "format", "", "Source format: xlsx, csv, tsv or json (default from extension)")
	fl.StringVar(&f.delimiter, "delimiter", "", "CSV field separator")
	fl.StringVar(&f.dateFormat, "date-format", "", "Go time layout for {date} (default 2006_01_02)")
	fl.IntVar(&f.lookbackDays, "lookback-days", 0, "Days to look back for {date} sources (default 7)")
	fl.StringArrayVar(&f.where, "where", nil, "Column filter Col=value or Col=a,b (repeatable)")
	fl.StringVar(&f.expr, "expr", "", "Expression every kept row must satisfy")
	fl.StringVar(&f.onError, "on-expr-error", sift.OnErrorFail, "Expression error policy: fail or skip")
	fl.StringSliceVar(&f.columns, "columns", nil, "Output columns in order (comma separated)")
	fl.StringVar(&f.xlsx, "xlsx", "", "Write an xlsx file")
	fl.StringVar(&f.json, "json", "", "Write a JSON file")
	fl.StringVar(&f.csv, "csv", "", "Write a CSV file")
	fl.StringVar(&f.sqlite, "sqlite", "", "Write a SQLite database")
	fl.StringVar(&f.table, "table", "", "SQLite table name (default filtered)")
}

// job builds a job for source from the flag values.
func (f *adhocFlags) job(source string) (*sift.Job, error) {
	filters, err := parseWhere(f.where)
	if err != nil {
		return nil, err
	}
	if f.onError != sift.OnErrorFail && f.onError != sift.OnErrorSkip {
		return nil, fmt.Errorf("invalid --on-expr-error %q: want %s or %s", f.onError, sift.OnErrorFail, sift.OnErrorSkip)
	}
	if f.lookbackDays < 0 {
		return nil, fmt.Errorf("invalid --lookback-days %d: must not be negative", f.lookbackDays)
	}

	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	job := &sift.Job{
		ID:   "filter-" + name,
		Name: name,
		Source: sift.SourceConfig{
			Path:         source,
			Format:       f.format,
			Sheet:        f.sheet,
			DateFormat:   f.dateFormat,
			LookbackDays: f.lookbackDays,
			Delimiter:    f.delimiter,
		},
		Filters:           filters,
		Where:             f.expr,
		OnExpressionError: f.onError,
		OutputColumns:     trimAll(f.columns),
	}

	for _, o := range []sift.SinkConfig{
		{Format: "xlsx", Path: f.xlsx},
		{Format: "json", Path: f.json},
		{Format: "csv", Path: f.csv},
		{Format: "sqlite", Path: f.sqlite, Table: f.table},
	} {
		if o.Path != "" {
			job.Outputs = append(job.Outputs, o)
		}
	}
	return job, nil
}

// parseWhere turns Col=value flags into a filter map. Col=a,b is an any-of
// set and repeating a column extends its set. Empty values are rejected: an
// empty filter value places no constraint, so empty cells need --expr.
func parseWhere(flags []string) (map[string]interface{}, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	filters := make(map[string]interface{}, len(flags))
	for _, raw := range flags {
		col, value, ok := strings.Cut(raw, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --where %q: want Column=value", raw)
		}

		values := trimAll(strings.Split(value, ","))
		if slices.Contains(values, "") {
			return nil, fmt.Errorf("invalid --where %q: empty value; use --expr '%s == nil' to match empty cells", raw, col)
		}
		if prev, exists := filters[col]; exists {
			values = append(asStrings(prev), values...)
		}
		if len(values) == 1 {
			filters[col] = values[0]
			continue
		}
		set := make([]interface{}, len(values))
		for i, v := range values {
			set[i] = v
		}
		filters[col] = set
	}
	return filters, nil
}

func asStrings(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
