package record

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDuplicateColumn is returned when a header lists the same name twice.
var ErrDuplicateColumn = errors.New("duplicate column name")

// Header is the ordered, duplicate-free column set of a table.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader builds a Header from names. Names must be unique.
func NewHeader(names []string) (*Header, error) {
	h := &Header{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, dup := h.index[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		h.names[i] = n
		h.index[n] = i
	}
	return h, nil
}

// NormalizeHeader turns a raw header row into unique column names.
// Blank cells become "Unnamed: i" and repeats get a ".N" suffix.
func NormalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	taken := make(map[string]bool, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		base := name
		for taken[name] {
			seen[base]++
			name = base + "." + strconv.Itoa(seen[base])
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

// Names returns a copy of the column names in order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len returns the number of columns.
func (h *Header) Len() int {
	return len(h.names)
}

// Index returns the position of name.
func (h *Header) Index(name string) (int, bool) {
	i, ok := h.index[name]
	return i, ok
}

// Has reports whether name is a column of h.
func (h *Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Name returns the column name at position i.
func (h *Header) Name(i int) string {
	return h.names[i]
}

// Record is one immutable row bound to a Header.
type Record struct {
	header *Header
	values []Value
}

// New builds a Record over h. Values are copied; extra values are dropped
// and missing trailing values are Empty.
func New(h *Header, values []Value) Record {
	vs := make([]Value, h.Len())
	copy(vs, values)
	return Record{header: h, values: vs}
}

// Header returns the header the record is bound to.
func (r Record) Header() *Header {
	return r.header
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.values)
}

// At returns the value at column position i.
func (r Record) At(i int) Value {
	return r.values[i]
}

// Get returns the value of column and whether the column exists.
func (r Record) Get(column string) (Value, bool) {
	if r.header == nil {
		return Empty(), false
	}
	i, ok := r.header.Index(column)
	if !ok {
		return Empty(), false
	}
	return r.values[i], true
}

// Values returns a copy of the field values in header order.
func (r Record) Values() []Value {
	out := make([]Value, len(r.values))
	copy(out, r.values)
	return out
}

// Map returns the record as column -> native value.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.values))
	for i, v := range r.values {
		m[r.header.names[i]] = v.Native()
	}
	return m
}

// Project returns a new record over h holding the fields at indexes.
func (r Record) Project(h *Header, indexes []int) Record {
	vs := make([]Value, len(indexes))
	for i, idx := range indexes {
		vs[i] = r.values[idx]
	}
	return Record{header: h, values: vs}
}

// Equal reports whether two records have the same columns and values.
func (r Record) Equal(o Record) bool {
	if len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if r.header.names[i] != o.header.names[i] || !r.values[i].Equal(o.values[i]) {
			return false
		}
	}
	return true
}

// Table is a header plus records in source order.
type Table struct {
	Header  *Header
	Records []Record
	// Source is the path the table was loaded from.
	Source string
	// Sheet is the sheet name for spreadsheet sources.
	Sheet string
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// WithRecords returns a table sharing t's header and metadata.
func (t *Table) WithRecords(records []Record) *Table {
	return &Table{Header: t.Header, Records: records, Source: t.Source, Sheet: t.Sheet}
}
