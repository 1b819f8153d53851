// Package dimensions produces every combination of dimension values for
// grouping raw images, plus the equality terms needed to pull each
// combination's records from the document store.
package dimensions

import (
	"fmt"
	"sort"

	"colorsweep/internal/domain"
)

// Combination is one dimension-combination group: the conjunction of one
// term-equality constraint per field. Its slug names the group's folder
// and object-store path component.
type Combination struct {
	Terms []domain.Tag
}

// Slug returns the group's serialized name, in filter order.
func (c Combination) Slug() domain.Slug { return domain.Slug(c.Terms) }

// Combine returns the Cartesian product of all field value sets, one
// Combination per element. Fields are pivoted in sorted name order so the
// output is deterministic: every combination appears exactly once and the
// total count is the product of the per-field set sizes.
//
// A field with zero candidate values yields zero combinations; callers
// must reject empty dimensions before combining (the Assembly Engine does
// this), because an empty product is indistinguishable from a missing
// dimension here. Combine reports ErrNoQueries rather than returning an
// empty set silently.
func Combine(fieldValues map[string][]string) ([]Combination, error) {
	if len(fieldValues) == 0 {
		return nil, fmt.Errorf("no fields to combine: %w", domain.ErrNoQueries)
	}

	fields := make([]string, 0, len(fieldValues))
	for field := range fieldValues {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var combos []Combination
	var pivot func(i int, fixed []domain.Tag)
	pivot = func(i int, fixed []domain.Tag) {
		field := fields[i]
		if i == len(fields)-1 {
			// last unfixed field: emit one combination per value
			for _, value := range fieldValues[field] {
				terms := make([]domain.Tag, len(fixed), len(fixed)+1)
				copy(terms, fixed)
				terms = append(terms, domain.Tag{Field: field, Value: value})
				combos = append(combos, Combination{Terms: terms})
			}
			return
		}
		for _, value := range fieldValues[field] {
			pivot(i+1, append(fixed, domain.Tag{Field: field, Value: value}))
		}
	}
	pivot(0, make([]domain.Tag, 0, len(fields)))

	if len(combos) == 0 {
		return nil, fmt.Errorf("no combinations for field values %v: %w", fieldValues, domain.ErrNoQueries)
	}
	return combos, nil
}
