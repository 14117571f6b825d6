package output

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// maxSheetNameLen is the worksheet name limit imposed by spreadsheet applications.
const maxSheetNameLen = 31

// partTime stamps every zip entry so identical tables give identical files.
var partTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// XLSXSink writes a workbook with exactly one sheet: a header row, then one
// row per record. Numbers become numeric cells and empty values blank cells.
type XLSXSink struct {
	path  string
	sheet string
}

// NewXLSXSink creates a workbook sink. The sheet defaults to "Filtered".
func NewXLSXSink(cfg sift.SinkConfig) (*XLSXSink, error) {
	if err := validateTarget(cfg); err != nil {
		return nil, err
	}
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = DefaultSheetName
	}
	if len([]rune(sheet)) > maxSheetNameLen {
		return nil, errhandling.NewInvalidConfig(fmt.Sprintf("sheet name %q exceeds %d characters", sheet, maxSheetNameLen), nil)
	}
	return &XLSXSink{path: cfg.Path, sheet: sheet}, nil
}

// Write replaces the target workbook with table.
func (s *XLSXSink) Write(ctx context.Context, table *record.Table) (sift.Artifact, error) {
	if err := precheck(ctx, table, s.path); err != nil {
		return sift.Artifact{}, err
	}

	wb, err := s.build(table)
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	size, err := replaceFile(s.path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		if err := writeWorkbook(w, wb); err != nil {
			return err
		}
		return w.Flush()
	})
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	logger.Debug("xlsx output written",
		slog.String("path", s.path),
		slog.String("sheet", s.sheet),
		slog.Int("records", table.Len()))
	return sift.Artifact{Format: FormatXLSX, Path: s.path, Records: table.Len(), Bytes: size}, nil
}

func (s *XLSXSink) build(table *record.Table) (*xlsx.File, error) {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("adding sheet %q: %w", s.sheet, err)
	}

	header := sheet.AddRow()
	for _, name := range table.Header.Names() {
		header.AddCell().SetString(name)
	}
	for _, rec := range table.Records {
		row := sheet.AddRow()
		for i := 0; i < rec.Len(); i++ {
			cell := row.AddCell()
			v := rec.At(i)
			switch v.Kind() {
			case record.KindNumber:
				f, _ := v.Float()
				cell.SetFloat(f)
			case record.KindText:
				cell.SetString(v.String())
			}
		}
	}
	return wb, nil
}

// writeWorkbook zips the workbook parts in name order with fixed timestamps.
// xlsx.File.Write ranges over a map, so its entry order changes between runs.
func writeWorkbook(w io.Writer, wb *xlsx.File) error {
	parts, err := wb.MarshallParts()
	if err != nil {
		return fmt.Errorf("marshalling workbook: %w", err)
	}
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: partTime})
		if err != nil {
			return fmt.Errorf("adding %s: %w", name, err)
		}
		if _, err := io.WriteString(fw, parts[name]); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return zw.Close()
}

// Target returns the output path.
func (s *XLSXSink) Target() string { return s.path }

// Format returns "xlsx".
func (s *XLSXSink) Format() string { return FormatXLSX }

var _ Module = (*XLSXSink)(nil)
