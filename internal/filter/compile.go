package filter

import (
	"fmt"
	"strings"

	"github.com/peachstate/voterlens/internal/domain"
)

type sqlBuilder struct {
	args  []any
	start int
}

func newSQLBuilder(start int) *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0), start: start}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return b.start + len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// Compile turns a FilterSpec into a parameterized predicate fragment with
// placeholders numbered from $1.
func Compile(spec domain.FilterSpec) (domain.CompiledPredicate, error) {
	return CompileFrom(spec, 0)
}

// CompileFrom compiles with placeholders numbered from $start+1, so the
// fragment can be appended to a statement that already bound parameters.
//
// Criteria on the same field OR-join inside parentheses; field groups and the
// geography predicate AND-join. The empty spec compiles to an empty clause.
func CompileFrom(spec domain.FilterSpec, start int) (domain.CompiledPredicate, error) {
	builder := newSQLBuilder(start)
	var clauses []string

	for _, group := range groupCriteria(spec.Criteria) {
		clause, err := compileGroup(group, builder)
		if err != nil {
			return domain.CompiledPredicate{}, err
		}
		if clause != "" {
			clauses = append(clauses, clause)
		}
	}

	if spec.Geography != nil {
		switch {
		case spec.Geography.Box != nil:
			clauses = append(clauses, geometryClause(*spec.Geography.Box, builder))
		case spec.Geography.Area != nil:
			areaClauses, err := areaScopeClauses(*spec.Geography.Area, builder)
			if err != nil {
				return domain.CompiledPredicate{}, err
			}
			clauses = append(clauses, areaClauses...)
		}
	}

	if len(clauses) == 0 {
		return domain.CompiledPredicate{}, nil
	}

	return domain.CompiledPredicate{
		Clause: strings.Join(clauses, " AND "),
		Params: builder.args,
	}, nil
}

// fieldGroup collects every criterion targeting the same field, preserving
// the order of first appearance.
type fieldGroup struct {
	field    domain.VoterField
	criteria []domain.FilterCriterion
}

func groupCriteria(criteria []domain.FilterCriterion) []fieldGroup {
	index := make(map[domain.VoterField]int)
	groups := make([]fieldGroup, 0, len(criteria))
	for _, c := range criteria {
		if i, ok := index[c.Field]; ok {
			groups[i].criteria = append(groups[i].criteria, c)
			continue
		}
		index[c.Field] = len(groups)
		groups = append(groups, fieldGroup{field: c.Field, criteria: []domain.FilterCriterion{c}})
	}
	return groups
}

func compileGroup(group fieldGroup, builder *sqlBuilder) (string, error) {
	if !domain.IsAllowedField(group.field) {
		return "", domain.ErrConfiguration("field %q is not in the filter allow-list", group.field)
	}

	var terms []string
	for _, crit := range group.criteria {
		t, err := compileCriterion(crit, builder)
		if err != nil {
			return "", err
		}
		terms = append(terms, t...)
	}

	switch len(terms) {
	case 0:
		return "", nil
	case 1:
		return terms[0], nil
	default:
		return "(" + strings.Join(terms, " OR ") + ")", nil
	}
}

// compileCriterion emits one placeholder per scalar value. In-lists expand to
// OR-joined equality terms rather than an array bind so the placeholder count
// always equals the number of values.
func compileCriterion(crit domain.FilterCriterion, builder *sqlBuilder) ([]string, error) {
	col := string(crit.Field)

	switch crit.Operator {
	case domain.OpRange:
		var parts []string
		if crit.Min != nil {
			idx := builder.addArg(*crit.Min)
			parts = append(parts, fmt.Sprintf("%s >= %s", col, builder.placeholder(idx)))
		}
		if crit.Max != nil {
			idx := builder.addArg(*crit.Max)
			parts = append(parts, fmt.Sprintf("%s <= %s", col, builder.placeholder(idx)))
		}
		if len(parts) == 0 {
			return nil, nil
		}
		return []string{strings.Join(parts, " AND ")}, nil

	case domain.OpILike:
		terms := make([]string, 0, len(crit.Values))
		for _, v := range crit.Values {
			idx := builder.addArg("%" + v + "%")
			terms = append(terms, fmt.Sprintf("%s ILIKE %s", col, builder.placeholder(idx)))
		}
		return terms, nil

	case domain.OpEq, domain.OpIn:
		terms := make([]string, 0, len(crit.Values))
		for _, v := range crit.Values {
			idx := builder.addArg(v)
			terms = append(terms, fmt.Sprintf("UPPER(%s) = UPPER(%s)", col, builder.placeholder(idx)))
		}
		return terms, nil
	}

	return nil, domain.ErrConfiguration("unsupported filter operator %q", crit.Operator)
}

// areaScopeClauses compiles an area scope into column criteria: one on the
// area column, plus one on the sub-area column when set. Geometry is never
// involved on this path.
func areaScopeClauses(area domain.AreaScope, builder *sqlBuilder) ([]string, error) {
	field := area.Type.AreaField()
	if field == "" {
		return nil, domain.ErrConfiguration("area type %q has no matching column", area.Type)
	}

	clauses := make([]string, 0, 2)
	terms, err := compileCriterion(criterionFor(field, []string{area.Value}), builder)
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, terms...)

	if area.SubArea != nil {
		subField := area.SubArea.Type.SubAreaField()
		if subField == "" {
			return nil, domain.ErrConfiguration("sub-area type %q has no matching column", area.SubArea.Type)
		}
		terms, err := compileCriterion(criterionFor(subField, []string{area.SubArea.Value}), builder)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, terms...)
	}

	return clauses, nil
}
