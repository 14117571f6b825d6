package output

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// JSONSink writes an array of objects whose key order follows the header.
// Numbers are JSON numbers and empty cells are null.
type JSONSink struct {
	path string
}

// NewJSONSink creates a JSON sink for cfg.Path.
func NewJSONSink(cfg sift.SinkConfig) (*JSONSink, error) {
	if err := validateTarget(cfg); err != nil {
		return nil, err
	}
	return &JSONSink{path: cfg.Path}, nil
}

// Write replaces the target file with table as indented JSON.
func (s *JSONSink) Write(ctx context.Context, table *record.Table) (sift.Artifact, error) {
	if err := precheck(ctx, table, s.path); err != nil {
		return sift.Artifact{}, err
	}

	data, err := encodeJSON(table)
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	size, err := replaceFile(s.path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		if _, err := w.Write(data); err != nil {
			return err
		}
		return w.Flush()
	})
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	logger.Debug("json output written",
		slog.String("path", s.path),
		slog.Int("records", table.Len()))
	return sift.Artifact{Format: FormatJSON, Path: s.path, Records: table.Len(), Bytes: size}, nil
}

// encodeJSON renders table as an indented array with a trailing newline.
func encodeJSON(table *record.Table) ([]byte, error) {
	names := table.Header.Names()
	rows := make([]*orderedmap.OrderedMap[string, any], 0, table.Len())
	for _, rec := range table.Records {
		om := orderedmap.New[string, any]()
		for i, name := range names {
			om.Set(name, rec.At(i).Native())
		}
		rows = append(rows, om)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Target returns the output path.
func (s *JSONSink) Target() string { return s.path }

// Format returns "json".
func (s *JSONSink) Format() string { return FormatJSON }

var _ Module = (*JSONSink)(nil)
