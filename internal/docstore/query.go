package docstore

import "colorsweep/internal/domain"

// Clause is one equality constraint of a boolean filter query: a "term"
// match for scalar values, a multi-value "terms" match otherwise.
type Clause struct {
	field  string
	value  any
	values []any
}

// Term builds an exact-match clause for a single value.
func Term(field string, value any) Clause {
	return Clause{field: field, value: value}
}

// Terms builds a multi-value match clause: a document matches when its
// field holds any of the given values.
func Terms(field string, values ...string) Clause {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Clause{field: field, values: vs}
}

// TagClauses converts dimension tags into term clauses, preserving order.
func TagClauses(tags []domain.Tag) []Clause {
	clauses := make([]Clause, len(tags))
	for i, t := range tags {
		clauses[i] = Term(t.Field, t.Value)
	}
	return clauses
}

func (c Clause) source() map[string]any {
	if c.values != nil {
		return map[string]any{"terms": map[string]any{c.field: c.values}}
	}
	return map[string]any{"term": map[string]any{c.field: c.value}}
}

// FilterBody builds the standard conjunction-of-filters boolean query.
func FilterBody(clauses []Clause) map[string]any {
	filters := make([]any, len(clauses))
	for i, c := range clauses {
		filters[i] = c.source()
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"filter": filters},
		},
	}
}

// clauseForValue builds the identity-check clause for a document field
// value, using a terms match when the value is itself a list.
func clauseForValue(field string, value any) Clause {
	switch v := value.(type) {
	case []string:
		return Terms(field, v...)
	case []any:
		return Clause{field: field, values: v}
	default:
		return Term(field, value)
	}
}
