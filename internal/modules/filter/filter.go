// Package filter provides the row selection and projection stages.
// Stages take a table and return a new one; source tables are never modified.
package filter

import (
	"context"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/record"
)

// ctxCheckEvery is how many rows a stage processes between context checks.
const ctxCheckEvery = 1000

// Module represents one table-to-table stage.
type Module interface {
	// Process returns the stage output for table. Records keep source order.
	Process(ctx context.Context, table *record.Table) (*record.Table, error)
}

// Reporter is implemented by stages that produce advisory diagnostics.
type Reporter interface {
	// Diagnostics returns the findings of the last Process call.
	Diagnostics() []errhandling.Diagnostic
}

func checkContext(ctx context.Context, i int) error {
	if i%ctxCheckEvery != 0 {
		return nil
	}
	return ctx.Err()
}
