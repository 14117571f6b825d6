// Package cli provides CLI output formatting and display functions.
package cli

import (
	"fmt"
	"io"

	"github.com/rowsift/runtime/internal/config"
)

// PrintParseErrors prints parse errors to w.
func PrintParseErrors(w io.Writer, errors []config.ParseError, verbose bool) {
	fmt.Fprintln(w, "✗ Parse errors:")
	for _, err := range errors {
		printSingleParseError(w, err, verbose)
	}
}

// printSingleParseError prints a single parse error with location information.
func printSingleParseError(w io.Writer, err config.ParseError, verbose bool) {
	location := formatErrorLocation(err.Path, err.Line, err.Column)

	if location != "" {
		fmt.Fprintf(w, "  %s: %s\n", location, err.Message)
	} else {
		fmt.Fprintf(w, "  %s\n", err.Message)
	}

	if verbose && err.Type != "" {
		fmt.Fprintf(w, "    Type: %s\n", err.Type)
	}
}

// formatErrorLocation formats the error location string (path:line:column).
func formatErrorLocation(path string, line, column int) string {
	if path == "" {
		return ""
	}

	location := path
	if line > 0 {
		location += fmt.Sprintf(":%d", line)
		if column > 0 {
			location += fmt.Sprintf(":%d", column)
		}
	}
	return location
}

// PrintValidationErrors prints validation errors to w.
func PrintValidationErrors(w io.Writer, errors []config.ValidationError, verbose, quiet bool) {
	fmt.Fprintln(w, "✗ Validation errors:")
	for _, err := range errors {
		printSingleValidationError(w, err, verbose)
	}
	if !quiet && !verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Hint: Use --verbose for detailed error information")
	}
}

func printSingleValidationError(w io.Writer, err config.ValidationError, verbose bool) {
	path := err.Path
	if path == "" {
		path = "/"
	}
	field := err.Field
	if field == "" {
		field = path
	}

	if verbose {
		fmt.Fprintf(w, "  %s:\n", field)
		fmt.Fprintf(w, "    Pointer: %s\n", path)
		if err.Section != "" {
			fmt.Fprintf(w, "    Section: %s\n", err.Section)
		}
		fmt.Fprintf(w, "    Message: %s\n", err.Message)
		if err.Type != "" {
			fmt.Fprintf(w, "    Type: %s\n", err.Type)
		}
		return
	}

	if field != path {
		fmt.Fprintf(w, "  %s (%s): %s\n", field, path, truncate(err.Message, 80))
		return
	}
	fmt.Fprintf(w, "  %s: %s\n", path, truncate(err.Message, 80))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
