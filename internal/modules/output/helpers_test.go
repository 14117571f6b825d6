package output

import (
	"os"
	"strings"
	"testing"

	"github.com/rowsift/runtime/internal/record"
)

func newTable(t *testing.T, columns []string, rows ...[]any) *record.Table {
	t.Helper()
	h, err := record.NewHeader(columns)
	if err != nil {
		t.Fatalf("NewHeader() error = %v", err)
	}
	table := &record.Table{Header: h}
	for _, row := range rows {
		values := make([]record.Value, len(row))
		for i, cell := range row {
			v, err := record.FromAny(cell)
			if err != nil {
				t.Fatalf("FromAny(%v) error = %v", cell, err)
			}
			values[i] = v
		}
		table.Records = append(table.Records, record.New(h, values))
	}
	return table
}

func sampleTable(t *testing.T) *record.Table {
	return newTable(t, []string{"Number", "Dept", "Priority"},
		[]any{"VR001", "IT", 1},
		[]any{"VR002", "Eng", 2.5},
		[]any{"VR003", nil, nil},
	)
}

// assertNoTempFiles fails if dir holds leftover temp files.
func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
