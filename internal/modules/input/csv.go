package input

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// utf8BOM is stripped from the start of CSV exports.
const utf8BOM = "\ufeff"

// CSVLoader reads a delimited text file. Every cell is loaded as Text.
type CSVLoader struct {
	path      string
	delimiter rune
}

// NewCSVLoader creates a delimited text loader for the resolved path.
// The delimiter defaults to ',' (or tab for the tsv format).
func NewCSVLoader(path string, src sift.SourceConfig, format string) (*CSVLoader, error) {
	if err := pathutil.ValidateFilePath(path); err != nil {
		return nil, errhandling.NewSourceUnreadable(path, "invalid source path", err)
	}
	delim, err := parseDelimiter(src.Delimiter, format)
	if err != nil {
		return nil, err
	}
	return &CSVLoader{path: path, delimiter: delim}, nil
}

func parseDelimiter(s, format string) (rune, error) {
	switch {
	case s == "" && format == FormatTSV:
		return '\t', nil
	case s == "":
		return ',', nil
	case s == `\t` || s == "\t":
		return '\t', nil
	case utf8.RuneCountInString(s) != 1:
		return 0, errhandling.NewInvalidConfig(fmt.Sprintf("delimiter must be a single character, got %q", s), nil)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, errhandling.NewInvalidConfig(fmt.Sprintf("invalid delimiter %q", s), nil)
	}
	return r, nil
}

// Load opens the file, reads every row and closes the file.
func (l *CSVLoader) Load(ctx context.Context) (*record.Table, error) {
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

	br := bufio.NewReader(f)
	if peek, err := br.Peek(len(utf8BOM)); err == nil && string(peek) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.Comma = l.delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	var b *tableBuilder
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errhandling.NewSourceUnreadable(l.path, "malformed delimited text", err)
		}
		if b == nil {
			if isBlankRow(row) {
				continue
			}
			if b, err = newTableBuilder(l.path, "", row); err != nil {
				return nil, err
			}
			continue
		}
		b.add(textValues(row))
	}
	if b == nil {
		return nil, errhandling.NewSourceUnreadable(l.path, "no header row", nil)
	}
	logger.Debug("read delimited text", "path", l.path, "rows", b.count())
	return b.finish()
}

// Close is a no-op: Load closes the file before returning.
func (l *CSVLoader) Close() error {
	return nil
}

var _ Module = (*CSVLoader)(nil)
