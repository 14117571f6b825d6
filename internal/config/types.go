// Package config parses and validates rowsift job files (JSON/YAML) and
// converts them into sift.Job values.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseResult is a job document decoded into a generic map, before schema
// validation.
type ParseResult struct {
	// Data contains the parsed document as a map
	Data map[string]interface{}
	// Errors contains any parsing errors encountered
	Errors []ParseError
	// FilePath is the path to the parsed file (empty if parsed from string)
	FilePath string
	// Format indicates the detected format (json, yaml)
	Format string
}

// IsValid returns true if no parsing errors occurred.
func (r *ParseResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ParseError is a job file that could not be read or decoded. Line and
// Column point into the file when the decoder reports a position.
type ParseError struct {
	// Path is the file path where the error occurred
	Path string
	// Line is the line number (1-based, 0 if unknown)
	Line int
	// Column is the column number (1-based, 0 if unknown)
	Column int
	// Offset is the byte offset in the file (0 if unknown)
	Offset int64
	// Message is the error message
	Message string
	// Type categorizes the error (syntax, io, format)
	Type string
}

// Error implements the error interface.
func (e ParseError) Error() string {
	var sb strings.Builder
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&sb, ", column %d", e.Column)
		}
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// ValidationResult is the outcome of checking a job document against the
// embedded job schema.
type ValidationResult struct {
	// Valid indicates whether the document is valid
	Valid bool
	// Errors contains validation errors
	Errors []ValidationError
}

// JobSection is the top-level part of a job document an error points into.
type JobSection string

// Job sections. SectionJob covers the document root and the identity fields.
const (
	SectionJob     JobSection = "job"
	SectionSource  JobSection = "source"
	SectionFilters JobSection = "filters"
	SectionWhere   JobSection = "where"
	SectionColumns JobSection = "columns"
	SectionOutputs JobSection = "outputs"
)

// ValidationError is a schema violation located in a job document.
type ValidationError struct {
	// Path is the JSON pointer of the offending value (e.g. "/job/outputs/1/sheet")
	Path string
	// Section is the part of the job Path falls in
	Section JobSection
	// Field names the offending value the way a job file reads,
	// e.g. "outputs[1].sheet" or "filters.Dept"
	Field string
	// Type is the error type (required, type, enum, ...)
	Type string
	// Message is the error message
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// locateJobField maps an instance location to its job section and field.
// Array indexes under columns and outputs render as [n]; the "onExpressionError"
// setting belongs to the where section.
func locateJobField(loc []string) (JobSection, string) {
	if len(loc) == 0 || (len(loc) == 1 && loc[0] == "job") {
		return SectionJob, "job"
	}
	if loc[0] != "job" {
		return SectionJob, strings.Join(loc, ".")
	}
	rest := loc[1:]

	var section JobSection
	switch rest[0] {
	case "source", "filters", "columns", "outputs", "where":
		section = JobSection(rest[0])
	case "onExpressionError":
		section = SectionWhere
	default:
		section = SectionJob
	}

	var sb strings.Builder
	sb.WriteString(rest[0])
	indexed := section == SectionColumns || section == SectionOutputs
	for i, seg := range rest[1:] {
		if i == 0 && indexed {
			if _, err := strconv.Atoi(seg); err == nil {
				fmt.Fprintf(&sb, "[%s]", seg)
				continue
			}
		}
		sb.WriteByte('.')
		sb.WriteString(seg)
	}
	return section, sb.String()
}

// Result is what config.Load reports about a job file: the parsed document
// and every parse or schema error found on the way.
type Result struct {
	// Data contains the parsed and validated document
	Data map[string]interface{}
	// ParseErrors contains parsing errors
	ParseErrors []ParseError
	// ValidationErrors contains validation errors
	ValidationErrors []ValidationError
	// FilePath is the path to the job file
	FilePath string
	// Format is the detected format (json, yaml)
	Format string
}

// IsValid returns true if no errors occurred.
func (r *Result) IsValid() bool {
	return len(r.ParseErrors) == 0 && len(r.ValidationErrors) == 0
}

// AllErrors returns all errors (parsing and validation) as a single slice.
func (r *Result) AllErrors() []error {
	errs := make([]error, 0, len(r.ParseErrors)+len(r.ValidationErrors))
	for _, e := range r.ParseErrors {
		errs = append(errs, e)
	}
	for _, e := range r.ValidationErrors {
		errs = append(errs, e)
	}
	return errs
}

// Parse error types.
const (
	ErrorTypeIO     = "io"
	ErrorTypeSyntax = "syntax"
	ErrorTypeFormat = "format"
)

// Document formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)
