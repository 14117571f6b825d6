package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/logger"
	"github.com/rowsift/runtime/internal/record"
	"github.com/rowsift/runtime/pkg/sift"
)

// SQLiteSink writes the table into a fresh SQLite database file.
// Columns are untyped and follow header order; values keep their native type.
type SQLiteSink struct {
	path  string
	table string
}

// NewSQLiteSink creates a SQLite sink. The table defaults to "filtered".
func NewSQLiteSink(cfg sift.SinkConfig) (*SQLiteSink, error) {
	if err := validateTarget(cfg); err != nil {
		return nil, err
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = DefaultTableName
	}
	return &SQLiteSink{path: cfg.Path, table: table}, nil
}

// Write replaces the target database with one table holding every record.
func (s *SQLiteSink) Write(ctx context.Context, table *record.Table) (sift.Artifact, error) {
	if err := precheck(ctx, table, s.path); err != nil {
		return sift.Artifact{}, err
	}

	size, err := replaceFile(s.path, func(f *os.File) error {
		return s.fill(ctx, f.Name(), table)
	})
	if err != nil {
		return sift.Artifact{}, errhandling.NewSinkWriteFailure(s.path, err)
	}

	logger.Debug("sqlite output written", "path", s.path, "table", s.table, "records", table.Len())
	return sift.Artifact{Format: FormatSQLite, Path: s.path, Records: table.Len(), Bytes: size}, nil
}

func (s *SQLiteSink) fill(ctx context.Context, dbPath string, table *record.Table) (err error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", cerr)
		}
	}()

	names := table.Header.Names()
	cols := make([]string, len(names))
	marks := make([]string, len(names))
	for i, n := range names {
		cols[i] = quoteIdent(n)
		marks[i] = "?"
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(s.table), strings.Join(cols, ", "))); err != nil {
		return fmt.Errorf("creating table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.table), strings.Join(cols, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	args := make([]any, len(names))
	for i, rec := range table.Records {
		for j := range args {
			args[j] = rec.At(j).Native()
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("inserting record %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Target returns the output path.
func (s *SQLiteSink) Target() string { return s.path }

// Format returns "sqlite".
func (s *SQLiteSink) Format() string { return FormatSQLite }

var _ Module = (*SQLiteSink)(nil)
