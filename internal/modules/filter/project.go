package filter

import (
	"context"
	"log/slog"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
)

// Projection is the outcome of resolving output columns against a header.
type Projection struct {
	// Columns are the valid output columns in requested order.
	Columns []string
	// Dropped are the requested names missing from the header.
	Dropped []string
}

// Resolve intersects the requested columns with header, keeping the
// requested order. Repeated names keep their first position.
func Resolve(header *record.Header, columns []string) Projection {
	var p Projection
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c] {
			continue
		}
		seen[c] = true
		if header.Has(c) {
			p.Columns = append(p.Columns, c)
		} else {
			p.Dropped = append(p.Dropped, c)
		}
	}
	return p
}

// Project returns a table holding only the valid requested columns.
// It fails with NoValidColumns when no requested column exists.
func Project(ctx context.Context, table *record.Table, columns []string) (*record.Table, Projection, error) {
	p := Resolve(table.Header, columns)
	if len(p.Columns) == 0 {
		return nil, p, errhandling.NewNoValidColumns(columns)
	}

	header, err := record.NewHeader(p.Columns)
	if err != nil {
		return nil, p, err
	}
	indexes := make([]int, len(p.Columns))
	for i, c := range p.Columns {
		indexes[i], _ = table.Header.Index(c)
	}

	out := make([]record.Record, 0, len(table.Records))
	for i, rec := range table.Records {
		if err := checkContext(ctx, i); err != nil {
			return nil, p, err
		}
		out = append(out, rec.Project(header, indexes))
	}
	return &record.Table{Header: header, Records: out, Source: table.Source, Sheet: table.Sheet}, p, nil
}

// ProjectModule selects and orders output columns.
type ProjectModule struct {
	columns     []string
	projection  Projection
	diagnostics []errhandling.Diagnostic
}

// NewProjectModule creates a projection stage for the requested columns.
func NewProjectModule(columns []string) *ProjectModule {
	cols := make([]string, len(columns))
	copy(cols, columns)
	logger.Debug("project filter module initialized", slog.Any("columns", cols))
	return &ProjectModule{columns: cols}
}

// Process projects table, reporting each unknown output column.
func (m *ProjectModule) Process(ctx context.Context, table *record.Table) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, p, err := Project(ctx, table, m.columns)
	m.projection = p
	m.diagnostics = nil
	for _, col := range p.Dropped {
		m.diagnostics = append(m.diagnostics, errhandling.UnknownOutputColumn(col))
		logger.Warn("output column not in header; omitting",
			slog.String("column", col),
			slog.String("source", table.Source))
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Projection returns the resolved columns of the last Process call.
func (m *ProjectModule) Projection() Projection {
	return m.projection
}

// Diagnostics returns one UnknownOutputColumn diagnostic per dropped column.
func (m *ProjectModule) Diagnostics() []errhandling.Diagnostic {
	return m.diagnostics
}

var (
	_ Module   = (*ProjectModule)(nil)
	_ Reporter = (*ProjectModule)(nil)
)
