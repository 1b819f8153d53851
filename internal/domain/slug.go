package domain

import (
	"fmt"
	"strings"
)

// Tag is one field=value pair of a dimension-combination slug.
type Tag struct {
	Field string
	Value string
}

func (t Tag) String() string { return t.Field + "=" + t.Value }

// Slug names one dimension-combination group. Its serialized form is used
// both as a local directory name and as an object-store path component.
// Ordering is the filter order it was built in, not sorted; only TagsHash
// sorts its inputs.
type Slug []Tag

// String serializes the slug as field1=value1|field2=value2|...
// There is no escaping for literal | or = inside values; ParseSlug splits
// on the first = only, so values may contain = but never |.
func (s Slug) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = t.String()
	}
	return strings.Join(parts, "|")
}

// Tags returns the serialized field=value parts, in slug order.
func (s Slug) Tags() []string {
	tags := make([]string, len(s))
	for i, t := range s {
		tags[i] = t.String()
	}
	return tags
}

// ParseSlug parses a serialized slug back into its tags. A part without a
// = separator is a malformed tag.
func ParseSlug(raw string) (Slug, error) {
	parts := strings.Split(raw, "|")
	slug := make(Slug, 0, len(parts))
	for _, part := range parts {
		field, value, ok := strings.Cut(part, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("tag %q in slug %q: %w", part, raw, ErrMalformedTag)
		}
		slug = append(slug, Tag{Field: field, Value: value})
	}
	return slug, nil
}
