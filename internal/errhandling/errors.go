// Package errhandling provides the error kinds raised by the filtering pipeline.
// Every stage reports failures as a *PipelineError carrying a Kind, whether the
// kind halts the pipeline, and the path/column context needed to diagnose it
// without re-running. Nothing in the pipeline is retried.
package errhandling

import (
	"errors"
	"fmt"
	"strings"
)

// Kind represents the category of a pipeline error.
type Kind string

// Error kinds.
const (
	// KindSourceUnreadable: the source path is missing, unsupported, or has no sheets.
	KindSourceUnreadable Kind = "source_unreadable"

	// KindEmptySheet: the sheet has a header but no data rows. Not fatal.
	KindEmptySheet Kind = "empty_sheet"

	// KindUnknownFilterColumn: a filter key is not in the header. The key is dropped.
	KindUnknownFilterColumn Kind = "unknown_filter_column"

	// KindUnknownOutputColumn: an output column is not in the header. It is omitted.
	KindUnknownOutputColumn Kind = "unknown_output_column"

	// KindNoValidColumns: projection kept no columns; nothing is written.
	KindNoValidColumns Kind = "no_valid_columns"

	// KindSinkWriteFailure: an output artifact could not be written.
	KindSinkWriteFailure Kind = "sink_write_failure"

	// KindNothingToWrite: the record set is empty so the sink skipped writing.
	KindNothingToWrite Kind = "nothing_to_write"

	// KindInvalidConfig: the job configuration cannot drive a run.
	KindInvalidConfig Kind = "invalid_config"

	// KindUnknown represents unclassified errors.
	KindUnknown Kind = "unknown"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrSourceUnreadable    = &PipelineError{Kind: KindSourceUnreadable, Fatal: true}
	ErrEmptySheet          = &PipelineError{Kind: KindEmptySheet}
	ErrUnknownFilterColumn = &PipelineError{Kind: KindUnknownFilterColumn}
	ErrUnknownOutputColumn = &PipelineError{Kind: KindUnknownOutputColumn}
	ErrNoValidColumns      = &PipelineError{Kind: KindNoValidColumns, Fatal: true}
	ErrSinkWriteFailure    = &PipelineError{Kind: KindSinkWriteFailure, Fatal: true}
	ErrNothingToWrite      = &PipelineError{Kind: KindNothingToWrite}
	ErrInvalidConfig       = &PipelineError{Kind: KindInvalidConfig, Fatal: true}
)

// PipelineError wraps an error with its kind and diagnostic context.
type PipelineError struct {
	// Kind is the error classification.
	Kind Kind

	// Fatal reports whether the pipeline halts on this error.
	Fatal bool

	// Path is the file involved (source or sink target), if any.
	Path string

	// Column is the column name involved, if any.
	Column string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Path != "" {
		sb.WriteString(" (")
		sb.WriteString(e.Path)
		sb.WriteString(")")
	}
	if e.Column != "" {
		fmt.Fprintf(&sb, " column %q", e.Column)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause for errors.Is and errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches any *PipelineError of the same kind, so the sentinels work with errors.Is.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewSourceUnreadable reports a source that cannot be opened or parsed.
func NewSourceUnreadable(path, message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindSourceUnreadable, Fatal: true, Path: path, Message: message, Err: cause}
}

// NewEmptySheet reports a sheet with a header and no data rows.
func NewEmptySheet(path, sheet string) *PipelineError {
	msg := "header present but no data rows"
	if sheet != "" {
		msg = fmt.Sprintf("sheet %q has a header but no data rows", sheet)
	}
	return &PipelineError{Kind: KindEmptySheet, Path: path, Message: msg}
}

// NewNoValidColumns reports a projection that kept no columns.
func NewNoValidColumns(requested []string) *PipelineError {
	msg := "no output columns requested"
	if len(requested) > 0 {
		msg = fmt.Sprintf("none of the requested output columns exist in the header: %s", strings.Join(requested, ", "))
	}
	return &PipelineError{Kind: KindNoValidColumns, Fatal: true, Message: msg}
}

// NewSinkWriteFailure reports a failed write to target.
func NewSinkWriteFailure(path string, cause error) *PipelineError {
	return &PipelineError{Kind: KindSinkWriteFailure, Fatal: true, Path: path, Message: "write failed", Err: cause}
}

// NewNothingToWrite reports that a sink skipped an empty record set.
func NewNothingToWrite(path string) *PipelineError {
	return &PipelineError{Kind: KindNothingToWrite, Path: path, Message: "no records to write"}
}

// NewInvalidConfig reports a configuration problem found at run time.
func NewInvalidConfig(message string, cause error) *PipelineError {
	return &PipelineError{Kind: KindInvalidConfig, Fatal: true, Message: message, Err: cause}
}

// KindOf returns the kind of err, or KindUnknown for nil and unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsFatal reports whether err halts the pipeline.
// Unclassified errors are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Fatal
	}
	return true
}

// Diagnostic is an advisory, non-fatal finding reported alongside a run.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Column  string `json:"column,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// String renders the diagnostic for console output.
func (d Diagnostic) String() string {
	switch {
	case d.Column != "":
		return fmt.Sprintf("%s: %q %s", d.Kind, d.Column, d.Message)
	case d.Path != "":
		return fmt.Sprintf("%s: %s %s", d.Kind, d.Path, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// UnknownFilterColumn builds the diagnostic for a dropped filter key.
func UnknownFilterColumn(column string) Diagnostic {
	return Diagnostic{Kind: KindUnknownFilterColumn, Column: column, Message: "is not in the header; filter ignored"}
}

// UnknownOutputColumn builds the diagnostic for an omitted output column.
func UnknownOutputColumn(column string) Diagnostic {
	return Diagnostic{Kind: KindUnknownOutputColumn, Column: column, Message: "is not in the header; column omitted"}
}

// AsDiagnostic converts a non-fatal pipeline error into a diagnostic.
func AsDiagnostic(err error) (Diagnostic, bool) {
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Fatal {
		return Diagnostic{}, false
	}
	return Diagnostic{Kind: pe.Kind, Column: pe.Column, Path: pe.Path, Message: pe.Message}, true
}
