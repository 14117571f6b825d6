package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tealeg/xlsx"
)

type sheetFixture struct {
	name string
	rows [][]any
}

// writeWorkbook saves sheets as an .xlsx file in a temp dir and returns its path.
// Cells may be string, int, float64 or nil (blank).
func writeWorkbook(t *testing.T, name string, sheets ...sheetFixture) string {
	t.Helper()
	f := xlsx.NewFile()
	for _, s := range sheets {
		sh, err := f.AddSheet(s.name)
		if err != nil {
			t.Fatalf("AddSheet(%q): %v", s.name, err)
		}
		for _, cells := range s.rows {
			row := sh.AddRow()
			for _, v := range cells {
				c := row.AddCell()
				switch x := v.(type) {
				case string:
					c.SetString(x)
				case int:
					c.SetInt(x)
				case float64:
					c.SetFloat(x)
				case nil:
				default:
					t.Fatalf("unsupported fixture cell %T", v)
				}
			}
		}
	}
	path := filepath.Join(t.TempDir(), name)
	if err := f.Save(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}
