package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rowsift/runtime/internal/errhandling"
	"github.com/rowsift/runtime/internal/record"
)

// ConstraintKind identifies the shape of a column constraint.
type ConstraintKind uint8

// Constraint kinds.
const (
	// ConstraintNone places no restriction on the column.
	ConstraintNone ConstraintKind = iota
	// ConstraintEquals requires the value to equal one scalar.
	ConstraintEquals
	// ConstraintAnyOf requires the value to equal at least one member of a set.
	ConstraintAnyOf
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintEquals:
		return "equals"
	case ConstraintAnyOf:
		return "any-of"
	default:
		return "none"
	}
}

// Constraint is a per-column match criterion. Members are held as canonical
// text and compared case-insensitively.
type Constraint struct {
	kind    ConstraintKind
	members []string
}

// None returns the empty constraint.
func None() Constraint {
	return Constraint{}
}

// Equals returns a single-value constraint. An empty value yields None.
func Equals(value string) Constraint {
	if value == "" {
		return None()
	}
	return Constraint{kind: ConstraintEquals, members: []string{value}}
}

// AnyOf returns a set constraint. Empty members are dropped and members that
// differ only by case collapse. A set with no members left yields None.
func AnyOf(values ...string) Constraint {
	members := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || containsFold(members, v) {
			continue
		}
		members = append(members, v)
	}
	if len(members) == 0 {
		return None()
	}
	return Constraint{kind: ConstraintAnyOf, members: members}
}

// ConstraintFromAny builds a constraint from a decoded config value:
// nil or "" is None, a scalar is Equals, a list is AnyOf.
func ConstraintFromAny(v any) (Constraint, error) {
	switch x := v.(type) {
	case []any:
		members := make([]string, 0, len(x))
		for i, item := range x {
			val, err := record.FromAny(item)
			if err != nil {
				return None(), fmt.Errorf("member %d: %w", i, err)
			}
			members = append(members, val.String())
		}
		return AnyOf(members...), nil
	case []string:
		return AnyOf(x...), nil
	case map[string]any:
		return None(), fmt.Errorf("nested objects are not valid constraints")
	default:
		val, err := record.FromAny(v)
		if err != nil {
			return None(), err
		}
		return Equals(val.String()), nil
	}
}

// Kind returns the constraint shape.
func (c Constraint) Kind() ConstraintKind {
	return c.kind
}

// IsNone reports whether c places no restriction.
func (c Constraint) IsNone() bool {
	return c.kind == ConstraintNone
}

// Members returns a copy of the accepted values.
func (c Constraint) Members() []string {
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}

// Matches reports whether v satisfies c. None matches every value.
func (c Constraint) Matches(v record.Value) bool {
	if c.kind == ConstraintNone {
		return true
	}
	return containsFold(c.members, v.String())
}

func (c Constraint) String() string {
	switch c.kind {
	case ConstraintEquals:
		return fmt.Sprintf("= %q", c.members[0])
	case ConstraintAnyOf:
		quoted := make([]string, len(c.members))
		for i, m := range c.members {
			quoted[i] = fmt.Sprintf("%q", m)
		}
		return "in [" + strings.Join(quoted, ", ") + "]"
	default:
		return "any"
	}
}

func containsFold(members []string, s string) bool {
	for _, m := range members {
		if strings.EqualFold(m, s) {
			return true
		}
	}
	return false
}

// ColumnFilter binds a constraint to a column name.
type ColumnFilter struct {
	Column     string
	Constraint Constraint
}

// Spec is an ordered list of column filters, combined with logical AND.
type Spec []ColumnFilter

// ParseSpec builds a Spec from a config mapping of column name to scalar,
// list or null. Columns are sorted by name so reports are deterministic.
func ParseSpec(m map[string]any) (Spec, error) {
	columns := make([]string, 0, len(m))
	for k := range m {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	spec := make(Spec, 0, len(columns))
	for _, col := range columns {
		if strings.TrimSpace(col) == "" {
			return nil, errhandling.NewInvalidConfig("filter column name cannot be empty", nil)
		}
		c, err := ConstraintFromAny(m[col])
		if err != nil {
			return nil, errhandling.NewInvalidConfig(fmt.Sprintf("filter %q", col), err)
		}
		spec = append(spec, ColumnFilter{Column: col, Constraint: c})
	}
	return spec, nil
}

// Active returns the filters that carry a constraint.
func (s Spec) Active() Spec {
	out := make(Spec, 0, len(s))
	for _, f := range s {
		if !f.Constraint.IsNone() {
			out = append(out, f)
		}
	}
	return out
}

// Columns returns the filtered column names in order.
func (s Spec) Columns() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Column
	}
	return out
}
