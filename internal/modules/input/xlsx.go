package input

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// XLSXLoader reads one worksheet of an .xlsx workbook.
type XLSXLoader struct {
	path  string
	sheet string
}

// NewXLSXLoader creates a workbook loader for the resolved path.
// src.Sheet selects a worksheet by name; the first sheet is used when empty.
func NewXLSXLoader(path string, src sift.SourceConfig) (*XLSXLoader, error) {
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, errhandling.NewSourceUnreadable(path, "invalid source path", err)
	}
	return &XLSXLoader{path: path, sheet: src.Sheet}, nil
}

// Load opens the workbook, reads the selected sheet and closes the file.
func (l *XLSXLoader) Load(ctx context.Context) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, errhandling.NewSourceUnreadable(l.path, "cannot open source", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logger.Warn("failed to close source", "path", l.path, "error", cerr.Error())
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, errhandling.NewSourceUnreadable(l.path, "cannot stat source", err)
	}
	wb, err := xlsx.OpenReaderAt(f, info.Size())
	if err != nil {
		return nil, errhandling.NewSourceUnreadable(l.path, "not a readable xlsx workbook", err)
	}

	sheet, err := l.selectSheet(wb)
	if err != nil {
		return nil, err
	}
	logger.Debug("reading worksheet",
		"path", l.path,
		"sheet", sheet.Name,
		"rows", len(sheet.Rows))

	return readSheet(ctx, l.path, sheet)
}

// Close is a no-op: Load closes the workbook before returning.
func (l *XLSXLoader) Close() error {
	return nil
}

func (l *XLSXLoader) selectSheet(wb *xlsx.File) (*xlsx.Sheet, error) {
	if len(wb.Sheets) == 0 {
		return nil, errhandling.NewSourceUnreadable(l.path, "workbook contains no sheets", nil)
	}
	if l.sheet == "" {
		return wb.Sheets[0], nil
	}
	if s, ok := wb.Sheet[l.sheet]; ok {
		return s, nil
	}
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	return nil, errhandling.NewSourceUnreadable(l.path,
		fmt.Sprintf("sheet %q not found (available: %s)", l.sheet, strings.Join(names, ", ")), nil)
}

func readSheet(ctx context.Context, path string, sheet *xlsx.Sheet) (*record.Table, error) {
	rows := sheet.Rows
	start := 0
	for start < len(rows) && isBlankRow(rowText(rows[start])) {
		start++
	}
	if start == len(rows) {
		return nil, errhandling.NewSourceUnreadable(path, fmt.Sprintf("sheet %q has no header row", sheet.Name), nil)
	}

	b, err := newTableBuilder(path, sheet.Name, rowText(rows[start]))
	if err != nil {
		return nil, err
	}
	width := b.header.Len()
	for n, row := range rows[start+1:] {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b.add(rowValues(row, width))
	}
	return b.finish()
}

func rowText(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = cellText(c)
	}
	return out
}

func rowValues(row *xlsx.Row, width int) []record.Value {
	out := make([]record.Value, width)
	if row == nil {
		return out
	}
	for i, c := range row.Cells {
		if i >= width {
			break
		}
		out[i] = cellValue(c)
	}
	return out
}

// cellText returns the formatted text of c, falling back to the raw value.
func cellText(c *xlsx.Cell) string {
	if c == nil {
		return ""
	}
	s, err := c.FormattedValue()
	if err != nil {
		return c.Value
	}
	return s
}

// cellValue maps numeric cells whose formatted text is a plain number to
// Number. Everything else keeps its formatted text, so dates stay readable.
func cellValue(c *xlsx.Cell) record.Value {
	text := cellText(c)
	if strings.TrimSpace(text) == "" {
		return record.Empty()
	}
	if c.Type() == xlsx.CellTypeNumeric {
		if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return record.Number(f)
		}
	}
	return record.Text(text)
}

var _ Module = (*XLSXLoader)(nil)
