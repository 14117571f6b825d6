// Package sift provides public types for rowsift jobs and run results.
// This package is intended to be importable by external projects that need
// to drive the rowsift runtime or read its results.
package sift

import "time"

// Run statuses.
const (
	StatusSuccess   = "success"
	StatusEmpty     = "empty"
	StatusUnchanged = "unchanged"
	StatusError     = "error"
)

// Expression error policies for the where filter.
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
)

// Job is a complete filtering job: where to read, what to keep, where to write.
type Job struct {
	// ID is a stable identifier used for run state; defaults to Name
	ID string `json:"id,omitempty"`

	// Name is the human-readable name of the job
	Name string `json:"name"`

	// Description provides additional context about the job
	Description string `json:"description,omitempty"`

	// Source defines the tabular input
	Source SourceConfig `json:"source"`

	// Filters maps column names to a scalar, a list of scalars, or null
	Filters map[string]interface{} `json:"filters,omitempty"`

	// Where is an optional expression every kept row must satisfy
	Where string `json:"where,omitempty"`

	// OnExpressionError is "fail" (default) or "skip"
	OnExpressionError string `json:"onExpressionError,omitempty"`

	// OutputColumns is the ordered list of columns to keep
	OutputColumns []string `json:"columns"`

	// Outputs lists the sinks to write
	Outputs []SinkConfig `json:"outputs,omitempty"`
}

// SourceConfig describes the tabular source.
type SourceConfig struct {
	// Path is the source file; it may contain a {date} token
	Path string `json:"path"`

	// Format overrides extension detection ("xlsx", "csv", "json")
	Format string `json:"format,omitempty"`

	// Sheet selects a worksheet by name; the first sheet when empty
	Sheet string `json:"sheet,omitempty"`

	// DateFormat is the Go time layout substituted for {date}
	DateFormat string `json:"dateFormat,omitempty"`

	// LookbackDays is how many days before today to try for {date}
	LookbackDays int `json:"lookbackDays,omitempty"`

	// Delimiter is the CSV field separator
	Delimiter string `json:"delimiter,omitempty"`
}

// SinkConfig describes one output artifact.
type SinkConfig struct {
	// Format is "xlsx", "json", "csv" or "sqlite"
	Format string `json:"format"`

	// Path is the target file
	Path string `json:"path"`

	// Sheet names the xlsx worksheet
	Sheet string `json:"sheet,omitempty"`

	// Table names the sqlite table
	Table string `json:"table,omitempty"`
}

// Artifact is one written output.
type Artifact struct {
	Format  string `json:"format"`
	Path    string `json:"path"`
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes,omitempty"`
}

// Diagnostic is an advisory finding reported alongside a run.
type Diagnostic struct {
	Kind    string `json:"kind"`
	Column  string `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ExecutionResult represents the result of a job run.
type ExecutionResult struct {
	// RunID uniquely identifies this run
	RunID string `json:"runId"`

	// JobName is the name of the executed job
	JobName string `json:"jobName"`

	// Status is one of "success", "empty", "unchanged", "error"
	Status string `json:"status"`

	// DryRun is set when sinks were skipped
	DryRun bool `json:"dryRun,omitempty"`

	// SourcePath is the resolved source file
	SourcePath string `json:"sourcePath,omitempty"`

	// StartedAt is when execution started
	StartedAt time.Time `json:"startedAt"`

	// CompletedAt is when execution completed
	CompletedAt time.Time `json:"completedAt"`

	// RowsLoaded is the number of data rows read from the source
	RowsLoaded int `json:"rowsLoaded"`

	// RowsMatched is the number of rows that passed every filter
	RowsMatched int `json:"rowsMatched"`

	// AppliedFilters lists the filter columns in effect after validation
	AppliedFilters []string `json:"appliedFilters,omitempty"`

	// OutputColumns lists the projected columns in output order
	OutputColumns []string `json:"outputColumns,omitempty"`

	// DroppedFilterColumns lists filter keys missing from the header
	DroppedFilterColumns []string `json:"droppedFilterColumns,omitempty"`

	// DroppedOutputColumns lists output columns missing from the header
	DroppedOutputColumns []string `json:"droppedOutputColumns,omitempty"`

	// Artifacts lists the outputs written
	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Diagnostics lists every advisory finding
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// Error contains error details if execution failed
	Error *ExecutionError `json:"error,omitempty"`
}

// Duration returns the wall time of the run.
func (r *ExecutionResult) Duration() time.Duration {
	if r == nil || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// RowsWritten returns the largest record count across artifacts.
func (r *ExecutionResult) RowsWritten() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, a := range r.Artifacts {
		n = max(n, a.Records)
	}
	return n
}

// ExecutionError contains details about an execution failure.
type ExecutionError struct {
	// Code is the error code
	Code string `json:"code"`

	// Kind is the pipeline error kind (source_unreadable, ...)
	Kind string `json:"kind"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Stage is the stage where the error occurred
	Stage string `json:"stage,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`
}
