// Package record defines the tabular data model shared by every pipeline stage.
//
// A Table is a Header plus an ordered slice of Records. Records are immutable:
// filtering and projection build new Records and never touch the source ones.
// Column sets are discovered once from the source header, so column validation
// happens against an explicit Header instead of open-ended maps.
package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindEmpty Kind = iota
	KindText
	KindNumber
)

// String returns the kind name used in logs and errors.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single scalar cell: text, number, or empty.
type Value struct {
	kind Kind
	text string
	num  float64
}

// Empty returns the empty value.
func Empty() Value {
	return Value{}
}

// Text returns a text value. The empty string normalises to Empty.
func Text(s string) Value {
	if s == "" {
		return Value{}
	}
	return Value{kind: KindText, text: s}
}

// Number returns a numeric value. NaN normalises to Empty.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// FromAny converts a decoded config or JSON scalar into a Value.
// Bools become the text "true"/"false". Non-scalar inputs are rejected.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Empty(), nil
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case bool:
		return Text(strconv.FormatBool(x)), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	default:
		return Empty(), fmt.Errorf("unsupported scalar type %T", v)
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsEmpty reports whether v holds no value.
func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty
}

// Float returns the numeric payload and whether v is a Number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String returns the canonical text form of v.
// Numbers use their shortest decimal representation, so 1.0 renders as "1".
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return FormatNumber(v.num)
	default:
		return ""
	}
}

// Native returns nil, a string, or a float64.
func (v Value) Native() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindNumber:
		return v.num
	default:
		return nil
	}
}

// EqualFold compares the canonical text of v with s, ignoring case.
func (v Value) EqualFold(s string) bool {
	return strings.EqualFold(v.String(), s)
}

// Equal reports whether two values hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == o.text
	case KindNumber:
		return v.num == o.num
	default:
		return true
	}
}

// FormatNumber renders f in its shortest decimal form without exponent.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
