package filter

import (
	"testing"

	"github.com/rowsift/runtime/internal/record"
)

// newTable builds a table from column names and rows of Go scalars.
func newTable(t *testing.T, columns []string, rows ...[]any) *record.Table {
	t.Helper()
	h, err := record.NewHeader(columns)
	if err != nil {
		t.Fatalf("NewHeader() error = %v", err)
	}
	records := make([]record.Record, 0, len(rows))
	for _, row := range rows {
		values := make([]record.Value, len(row))
		for i, cell := range row {
			v, err := record.FromAny(cell)
			if err != nil {
				t.Fatalf("FromAny(%v) error = %v", cell, err)
			}
			values[i] = v
		}
		records = append(records, record.New(h, values))
	}
	return &record.Table{Header: h, Records: records, Source: "test.xlsx"}
}

// tableRows renders a table as maps of canonical text, for comparisons.
func tableRows(table *record.Table) []map[string]string {
	out := make([]map[string]string, 0, table.Len())
	for _, r := range table.Records {
		m := make(map[string]string, r.Len())
		for i, name := range table.Header.Names() {
			m[name] = r.At(i).String()
		}
		out = append(out, m)
	}
	return out
}
