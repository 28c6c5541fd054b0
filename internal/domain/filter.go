package domain

// FilterOperator represents a filter comparison operator.
type FilterOperator string

const (
	OpEq    FilterOperator = "eq"
	OpIn    FilterOperator = "in"
	OpILike FilterOperator = "ilike"
	OpRange FilterOperator = "range"
)

// FilterCriterion is one typed filter condition. Values are scalars; OpIn
// carries multiple values, OpRange carries optional bounds instead.
type FilterCriterion struct {
	Field    VoterField
	Operator FilterOperator
	Values   []string
	// Min and Max bound an OpRange criterion; either may be nil.
	Min *int
	Max *int
}

// FilterSpec is an ordered set of criteria plus an optional geography scope.
// Criteria on the same field combine with OR, criteria on different fields
// with AND. An empty spec matches the entire table.
type FilterSpec struct {
	Criteria  []FilterCriterion
	Geography *GeographyScope
}

// IsEmpty reports whether the spec constrains nothing.
func (s FilterSpec) IsEmpty() bool {
	return len(s.Criteria) == 0 && s.Geography == nil
}

// CompiledPredicate is a SQL fragment with positional placeholders and the
// ordered parameter list bound to them. Clause never contains an interpolated
// value, only column references and placeholders. An empty Clause means "no
// constraint"; callers prepend WHERE or AND themselves.
type CompiledPredicate struct {
	Clause string
	Params []any
}

// IsEmpty reports whether the predicate constrains nothing.
func (p CompiledPredicate) IsEmpty() bool { return p.Clause == "" }
