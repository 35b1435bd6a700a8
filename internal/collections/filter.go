package collections

import (
	"sort"
	"strings"
)

// Filter operators understood by the backend.
const (
	OpContains = "contains"
	OpEquals   = "eq"
	OpAnd      = "and"
	OpOr       = "or"
)

// Condition is a node in a filter expression tree: either a leaf comparison
// (Field/Operator/Value) or a combinator (Operator and/or with Conditions).
type Condition struct {
	Field      string       `json:"field,omitempty"`
	Operator   string       `json:"operator"`
	Value      any          `json:"value,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty"`
}

// FieldFilter is a per-column equality filter supplied by a caller.
type FieldFilter struct {
	Field string
	Value any
}

// OrderTerm is one ordering clause.
type OrderTerm struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Sort directions.
const (
	Ascending  = "asc"
	Descending = "desc"
)

// BuildWhere compiles a free-text search term plus per-column filters into a
// filter expression. The search term becomes an OR group of contains-matches
// over searchFields; column filters become equality leaves; the two are
// combined with AND. A single resulting condition is returned directly, and
// nil is returned when there is nothing to filter on, so the backend can
// distinguish "no filter" from an empty expression.
func BuildWhere(searchTerm string, filters []FieldFilter, searchFields []string) *Condition {
	var conditions []*Condition

	term := strings.TrimSpace(searchTerm)
	if term != "" && len(searchFields) > 0 {
		group := &Condition{Operator: OpOr}
		for _, field := range searchFields {
			group.Conditions = append(group.Conditions, &Condition{
				Field:    field,
				Operator: OpContains,
				Value:    term,
			})
		}
		if len(group.Conditions) == 1 {
			conditions = append(conditions, group.Conditions[0])
		} else {
			conditions = append(conditions, group)
		}
	}

	for _, f := range filters {
		conditions = append(conditions, &Condition{
			Field:    f.Field,
			Operator: OpEquals,
			Value:    f.Value,
		})
	}

	switch len(conditions) {
	case 0:
		return nil
	case 1:
		return conditions[0]
	default:
		return &Condition{Operator: OpAnd, Conditions: conditions}
	}
}

// BuildOrderBy returns the ordering clause for a list call, falling back to
// the default sort key and ascending direction when unset.
func BuildOrderBy(sortKey, direction, defaultKey string) []OrderTerm {
	key := sortKey
	if key == "" {
		key = defaultKey
	}
	dir := direction
	if dir != Ascending && dir != Descending {
		dir = Ascending
	}
	return []OrderTerm{{Field: key, Direction: dir}}
}

// normalizeFilters returns a copy of filters sorted by field name so that two
// logically identical filter sets produce identical cache keys regardless of
// construction order.
func normalizeFilters(filters []FieldFilter) []FieldFilter {
	if len(filters) < 2 {
		return filters
	}
	out := make([]FieldFilter, len(filters))
	copy(out, filters)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
