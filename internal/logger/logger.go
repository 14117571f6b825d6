// Package logger provides structured logging for the rowsift runtime.
// It wraps log/slog behind a package-level Logger so every stage logs with the
// same snake_case field names (run_id, job_name, stage, ...).
//
// Two console formats are supported:
//   - JSON (default): machine-readable structured logging
//   - Human: compact console lines with level glyphs and optional colors
//
// Logs go to stderr so that command output on stdout stays pipeable.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger is the default logger instance.
var Logger *slog.Logger

// output is where console handlers write.
var output io.Writer = os.Stderr

func init() {
	Logger = slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// OutputFormat represents the console log format.
type OutputFormat int

const (
	// FormatJSON is the default machine-readable JSON format
	FormatJSON OutputFormat = iota
	// FormatHuman is a human-readable console format
	FormatHuman
)

// ParseFormat maps a flag value to an OutputFormat. Unknown values fall back to JSON.
func ParseFormat(s string) OutputFormat {
	if s == "human" || s == "text" {
		return FormatHuman
	}
	return FormatJSON
}

// SetLevel configures the logging level, keeping the JSON format.
func SetLevel(level slog.Level) {
	SetLevelAndFormat(level, FormatJSON)
}

// SetLevelAndFormat sets both the log level and console format.
func SetLevelAndFormat(level slog.Level, format OutputFormat) {
	Logger = slog.New(newConsoleHandler(output, level, format))
}

// SetOutput redirects console logging, mainly for tests. It resets the level to Info.
func SetOutput(w io.Writer, format OutputFormat) {
	output = w
	Logger = slog.New(newConsoleHandler(w, slog.LevelInfo, format))
}

func newConsoleHandler(w io.Writer, level slog.Level, format OutputFormat) slog.Handler {
	if format == FormatHuman {
		return NewHumanHandler(w, &HumanHandlerOptions{
			Level:     level,
			UseColors: isTerminal(w),
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// ExecutionContext identifies a run for logging.
type ExecutionContext struct {
	// RunID is the unique identifier of this run (required)
	RunID string
	// JobName is the human-readable job name
	JobName string
	// Stage is the current stage (resolve, load, filter, project, write)
	Stage string
	// DryRun indicates sinks are skipped
	DryRun bool
}

// StageError is the error summary attached to a failed stage.
type StageError struct {
	Kind    string
	Message string
}

// Summary is the advisory report emitted at the end of every run.
type Summary struct {
	Status         string
	RowsLoaded     int
	RowsMatched    int
	RowsWritten    int
	FiltersApplied []string
	DroppedFilters []string
	DroppedColumns []string
	OutputColumns  []string
	Outputs        []string
	TotalDuration  time.Duration
}

// WithExecution returns a logger with the execution context attached.
func WithExecution(ctx ExecutionContext) *slog.Logger {
	return Logger.With(contextAttrs(ctx)...)
}

// LogExecutionStart logs the start of a run.
func LogExecutionStart(ctx ExecutionContext) {
	Logger.Info("execution started", contextAttrs(ctx)...)
}

// LogExecutionEnd logs the end of a run with its final status.
func LogExecutionEnd(ctx ExecutionContext, status string, duration time.Duration) {
	attrs := contextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", status),
		slog.Duration("duration", duration),
	)
	Logger.Info("execution completed", attrs...)
}

// LogStageStart logs the start of a stage.
func LogStageStart(ctx ExecutionContext) {
	Logger.Debug("stage started", contextAttrs(ctx)...)
}

// LogStageEnd logs a finished stage. A non-nil err logs at error level.
func LogStageEnd(ctx ExecutionContext, recordCount int, duration time.Duration, err *StageError) {
	attrs := contextAttrs(ctx)
	attrs = append(attrs,
		slog.Int("record_count", recordCount),
		slog.Duration("duration", duration),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("error_kind", err.Kind),
			slog.String("error", err.Message),
		)
		Logger.Error("stage failed", attrs...)
		return
	}
	Logger.Info("stage completed", attrs...)
}

// LogSummary logs the per-run diagnostics summary.
func LogSummary(ctx ExecutionContext, s Summary) {
	attrs := contextAttrs(ctx)
	attrs = append(attrs,
		slog.String("status", s.Status),
		slog.Int("rows_loaded", s.RowsLoaded),
		slog.Int("rows_matched", s.RowsMatched),
		slog.Int("rows_written", s.RowsWritten),
		slog.Any("filters_applied", s.FiltersApplied),
		slog.Duration("total_duration", s.TotalDuration),
	)
	if len(s.DroppedFilters) > 0 {
		attrs = append(attrs, slog.Any("dropped_filter_columns", s.DroppedFilters))
	}
	if len(s.DroppedColumns) > 0 {
		attrs = append(attrs, slog.Any("dropped_output_columns", s.DroppedColumns))
	}
	if len(s.OutputColumns) > 0 {
		attrs = append(attrs, slog.Any("output_columns", s.OutputColumns))
	}
	if len(s.Outputs) > 0 {
		attrs = append(attrs, slog.Any("outputs", s.Outputs))
	}
	Logger.Info("run summary", attrs...)
}

func contextAttrs(ctx ExecutionContext) []any {
	attrs := make([]any, 0, 4)
	attrs = append(attrs, slog.String("run_id", ctx.RunID))
	if ctx.JobName != "" {
		attrs = append(attrs, slog.String("job_name", ctx.JobName))
	}
	if ctx.Stage != "" {
		attrs = append(attrs, slog.String("stage", ctx.Stage))
	}
	if ctx.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	return attrs
}

// isTerminal returns true if the writer is a terminal (supports colors)
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
