package errhandling

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// TestKind tests kind constants and their string values.
func TestKind(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected string
	}{
		{KindSourceUnreadable, "source_unreadable"},
		{KindEmptySheet, "empty_sheet"},
		{KindUnknownFilterColumn, "unknown_filter_column"},
		{KindUnknownOutputColumn, "unknown_output_column"},
		{KindNoValidColumns, "no_valid_columns"},
		{KindSinkWriteFailure, "sink_write_failure"},
		{KindNothingToWrite, "nothing_to_write"},
		{KindInvalidConfig, "invalid_config"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.kind) != tt.expected {
				t.Errorf("Kind = %v, want %v", tt.kind, tt.expected)
			}
		})
	}
}

func TestPipelineError(t *testing.T) {
	t.Run("Error message formatting", func(t *testing.T) {
		err := NewSourceUnreadable("data/extract.xlsx", "cannot open file", os.ErrNotExist)
		msg := err.Error()
		for _, part := range []string{"source_unreadable", "data/extract.xlsx", "cannot open file"} {
			if !strings.Contains(msg, part) {
				t.Errorf("Error() = %q, want to contain %q", msg, part)
			}
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		err := NewSinkWriteFailure("out.json", os.ErrPermission)
		if !errors.Is(err, os.ErrPermission) {
			t.Error("errors.Is should match the underlying cause")
		}
	})

	t.Run("Is matches sentinel by kind", func(t *testing.T) {
		wrapped := fmt.Errorf("loading: %w", NewEmptySheet("a.xlsx", "Sheet1"))
		if !errors.Is(wrapped, ErrEmptySheet) {
			t.Error("expected wrapped empty sheet error to match ErrEmptySheet")
		}
		if errors.Is(wrapped, ErrSourceUnreadable) {
			t.Error("empty sheet must not match ErrSourceUnreadable")
		}
	})
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"source unreadable", NewSourceUnreadable("x", "missing", nil), true},
		{"empty sheet", NewEmptySheet("x", ""), false},
		{"no valid columns", NewNoValidColumns([]string{"A"}), true},
		{"sink failure", NewSinkWriteFailure("x", errors.New("disk full")), true},
		{"nothing to write", NewNothingToWrite("x"), false},
		{"unclassified", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindUnknown {
		t.Error("nil error should be unknown")
	}
	if KindOf(errors.New("x")) != KindUnknown {
		t.Error("plain error should be unknown")
	}
	err := fmt.Errorf("projecting: %w", NewNoValidColumns(nil))
	if KindOf(err) != KindNoValidColumns {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindNoValidColumns)
	}
}

func TestNewNoValidColumns_Message(t *testing.T) {
	if !strings.Contains(NewNoValidColumns(nil).Error(), "no output columns requested") {
		t.Error("empty request should say no columns were requested")
	}
	if !strings.Contains(NewNoValidColumns([]string{"Foo", "Bar"}).Error(), "Foo, Bar") {
		t.Error("message should list the requested columns")
	}
}

func TestAsDiagnostic(t *testing.T) {
	d, ok := AsDiagnostic(NewNothingToWrite("out.xlsx"))
	if !ok {
		t.Fatal("nothing-to-write should convert to a diagnostic")
	}
	if d.Kind != KindNothingToWrite || d.Path != "out.xlsx" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
	if _, ok := AsDiagnostic(NewSinkWriteFailure("x", nil)); ok {
		t.Error("fatal errors must not convert to diagnostics")
	}
}

func TestDiagnostic_String(t *testing.T) {
	got := UnknownFilterColumn("Region").String()
	if !strings.Contains(got, `"Region"`) || !strings.Contains(got, "unknown_filter_column") {
		t.Errorf("String() = %q", got)
	}
}
