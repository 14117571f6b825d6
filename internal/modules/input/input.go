// Package input provides the tabular loaders.
// A loader opens one resolved source file, reads the first non-blank row as
// the header and returns every following non-blank row as a record.
package input

import (
	"context"
	"strings"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// Supported source formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatJSON = "json"
)

// ctxCheckEvery is how many rows a loader reads between context checks.
const ctxCheckEvery = 1000

// Module represents a loader that reads a tabular source.
type Module interface {
	// Load opens the source, reads it fully and closes it again.
	// A header with no data rows yields the header-only table together with
	// an error matching errhandling.ErrEmptySheet.
	Load(ctx context.Context) (*record.Table, error)
	// Close releases any resources held by the module. It is idempotent.
	Close() error
}

// DetectFormat returns the loader format for src, from src.Format or the
// path extension. Unsupported formats are reported as SourceUnreadable.
func DetectFormat(src sift.SourceConfig) (string, error) {
	format := strings.ToLower(strings.TrimSpace(src.Format))
	if format == "" {
		format = pathutil.Extension(src.Path)
	}
	switch format {
	case FormatXLSX, "xlsm":
		return FormatXLSX, nil
	case FormatCSV, "txt":
		return FormatCSV, nil
	case FormatTSV:
		return FormatTSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case "":
		return "", errhandling.NewSourceUnreadable(src.Path, "cannot detect source format; set source.format", nil)
	default:
		return "", errhandling.NewSourceUnreadable(src.Path, "unsupported source format "+format, nil)
	}
}

// tableBuilder accumulates rows under a normalised header.
type tableBuilder struct {
	path    string
	sheet   string
	header  *record.Header
	records []record.Record
}

func newTableBuilder(path, sheet string, rawHeader []string) (*tableBuilder, error) {
	if isBlankRow(rawHeader) {
		return nil, errhandling.NewSourceUnreadable(path, "no header row", nil)
	}
	h, err := record.NewHeader(record.NormalizeHeader(rawHeader))
	if err != nil {
		return nil, errhandling.NewSourceUnreadable(path, "invalid header row", err)
	}
	return &tableBuilder{path: path, sheet: sheet, header: h}, nil
}

// add appends one data row. Rows with no non-empty value are skipped.
func (b *tableBuilder) add(values []record.Value) {
	for _, v := range values {
		if !v.IsEmpty() {
			b.records = append(b.records, record.New(b.header, values))
			return
		}
	}
}

func (b *tableBuilder) count() int {
	return len(b.records)
}

// finish returns the table, with an EmptySheet error when no data rows were added.
func (b *tableBuilder) finish() (*record.Table, error) {
	t := &record.Table{Header: b.header, Records: b.records, Source: b.path, Sheet: b.sheet}
	if len(b.records) == 0 {
		return t, errhandling.NewEmptySheet(b.path, b.sheet)
	}
	return t, nil
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// textValues converts raw cells to Text values. Whitespace-only cells are Empty.
func textValues(cells []string) []record.Value {
	out := make([]record.Value, len(cells))
	for i, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		out[i] = record.Text(c)
	}
	return out
}
