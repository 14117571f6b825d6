package filter

import (
	"context"
	"log/slog"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
)

// Evaluate reports whether rec satisfies every constraint in spec.
// Values compare as canonical text, ignoring case. A constrained column that
// rec does not have never matches. Evaluate has no side effects.
func Evaluate(rec record.Record, spec Spec) bool {
	for _, f := range spec {
		if f.Constraint.IsNone() {
			continue
		}
		v, ok := rec.Get(f.Column)
		if !ok || !f.Constraint.Matches(v) {
			return false
		}
	}
	return true
}

// Validate checks spec against header once per run. It returns the active
// filters on known columns and the names of unknown columns, in spec order.
func Validate(spec Spec, header *record.Header) (effective Spec, dropped []string) {
	effective = make(Spec, 0, len(spec))
	for _, f := range spec {
		if !header.Has(f.Column) {
			dropped = append(dropped, f.Column)
			continue
		}
		if !f.Constraint.IsNone() {
			effective = append(effective, f)
		}
	}
	return effective, dropped
}

// MatchModule keeps the rows that satisfy a column filter spec.
type MatchModule struct {
	spec        Spec
	applied     Spec
	dropped     []string
	diagnostics []errhandling.Diagnostic
}

// NewMatchModule creates a match stage for spec.
func NewMatchModule(spec Spec) *MatchModule {
	logger.Debug("match filter module initialized", slog.Int("filters", len(spec)))
	return &MatchModule{spec: spec}
}

// NewMatchFromConfig parses a filters mapping into a match stage.
func NewMatchFromConfig(filters map[string]any) (*MatchModule, error) {
	spec, err := ParseSpec(filters)
	if err != nil {
		return nil, err
	}
	return NewMatchModule(spec), nil
}

// Process validates the spec against the table header, reports unknown
// columns, then filters stably. The input table is not modified.
func (m *MatchModule) Process(ctx context.Context, table *record.Table) (*record.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.applied, m.dropped = Validate(m.spec, table.Header)
	m.diagnostics = nil
	for _, col := range m.dropped {
		d := errhandling.UnknownFilterColumn(col)
		m.diagnostics = append(m.diagnostics, d)
		logger.Warn("filter column not in header; ignoring",
			slog.String("column", col),
			slog.String("source", table.Source))
	}

	if len(m.applied) == 0 {
		return table.WithRecords(append([]record.Record(nil), table.Records...)), nil
	}

	kept := make([]record.Record, 0, len(table.Records))
	for i, rec := range table.Records {
		if err := checkContext(ctx, i); err != nil {
			return nil, err
		}
		if Evaluate(rec, m.applied) {
			kept = append(kept, rec)
		}
	}

	logger.Debug("match filter applied",
		slog.Int("input", len(table.Records)),
		slog.Int("kept", len(kept)),
		slog.Any("columns", m.applied.Columns()))
	return table.WithRecords(kept), nil
}

// Applied returns the filters in effect after the last Process call.
func (m *MatchModule) Applied() Spec {
	return m.applied
}

// Dropped returns the unknown filter columns found by the last Process call.
func (m *MatchModule) Dropped() []string {
	return m.dropped
}

// Diagnostics returns one UnknownFilterColumn diagnostic per dropped column.
func (m *MatchModule) Diagnostics() []errhandling.Diagnostic {
	return m.diagnostics
}

var (
	_ Module   = (*MatchModule)(nil)
	_ Reporter = (*MatchModule)(nil)
)
