// Package output provides the sinks that write a projected table to disk.
// Every sink writes atomically and never creates a file for an empty table.
package output

import (
	"context"
	"fmt"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/pathutil"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// Supported sink formats.
const (
	FormatXLSX   = "xlsx"
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Sink defaults.
const (
	DefaultSheetName = "Filtered"
	DefaultTableName = "filtered"
)

// Module represents a sink that writes one output artifact.
type Module interface {
	// Write replaces the target with the contents of table.
	// An empty table returns an error matching errhandling.ErrNothingToWrite
	// and leaves the target untouched.
	Write(ctx context.Context, table *record.Table) (sift.Artifact, error)
	// Target returns the output path.
	Target() string
	// Format returns the sink format name.
	Format() string
}

func validateTarget(cfg sift.SinkConfig) error {
	if err := pathutil.ValidateFilePath(cfg.Path); err != nil {
		return errhandling.NewInvalidConfig(fmt.Sprintf("%s output path", cfg.Format), err)
	}
	return nil
}

// precheck rejects cancelled contexts and empty tables before any file is touched.
func precheck(ctx context.Context, table *record.Table, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if table.Len() == 0 {
		return errhandling.NewNothingToWrite(target)
	}
	return nil
}
