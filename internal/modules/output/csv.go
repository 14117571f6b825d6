package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// CSVSink writes a header row followed by the canonical text of every value.
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink for cfg.Path.
func NewCSVSink(cfg sift.SinkConfig) (*CSVSink, error) {
	if err := validateTarget(cfg); err != nil {
		return nil, err
	}
	return &CSVSink{path: cfg.Path}, nil
}

// Write replaces the target file with table as comma separated text.
func (s *CSVSink) Write(ctx context.Context, table *record.Table) (sift.Artifact, error) {
	if err := precheck(ctx, table, s.path); err != nil {
		return sift.Artifact{}, err
	}

	size, err := replaceFile(s.path, func(f *os.File) error {
		bw := bufio.NewWriter(f)
		w := csv.NewWriter(bw)
		if err := w.Write(table.Header.Names()); err != nil {
			return err
		}
		row := make([]string, table.Header.Len())
		for _, rec := range table.Records {
			for i := range row {
				row[i] = rec.At(i).String()
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	logger.Debug("csv output written", "path", s.path, "records", table.Len())
	return sift.Artifact{Format: FormatCSV, Path: s.path, Records: table.Len(), Bytes: size}, nil
}

// Target returns the output path.
func (s *CSVSink) Target() string { return s.path }

// Format returns "csv".
func (s *CSVSink) Format() string { return FormatCSV }

var _ Module = (*CSVSink)(nil)
