package trial

import (
	"fmt"
	"strconv"
	"strings"

	"colorsweep/internal/domain"
)

// ParseSliceSpec parses a batch-slice argument of the form "N of M" or
// "N/M". N is zero-indexed: "0 of 10" is the first of ten slices.
func ParseSliceSpec(spec string) (index, total int, err error) {
	var left, right string
	var ok bool
	if left, right, ok = strings.Cut(spec, " of "); !ok {
		if left, right, ok = strings.Cut(spec, "/"); !ok {
			return 0, 0, fmt.Errorf("%q: use ' of ' or '/' to separate the slice index and total: %w",
				spec, domain.ErrInvalidSlice)
		}
	}
	index, err = strconv.Atoi(strings.TrimSpace(left))
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse %q as a batch slice: %w", spec, domain.ErrInvalidSlice)
	}
	total, err = strconv.Atoi(strings.TrimSpace(right))
	if err != nil {
		return 0, 0, fmt.Errorf("could not parse %q as a batch slice: %w", spec, domain.ErrInvalidSlice)
	}
	if total <= 0 || index < 0 || index >= total {
		return 0, 0, fmt.Errorf("slice index must be in [0, total): %q: %w", spec, domain.ErrInvalidSlice)
	}
	return index, total, nil
}

// Slice returns the contiguous chunk of items selected by the batch-slice
// spec. Items are divided into total equal chunks; the division remainder
// is absorbed by the last chunk, so the union of all slices reconstructs
// the input exactly.
func Slice[T any](items []T, spec string) ([]T, error) {
	index, total, err := ParseSliceSpec(spec)
	if err != nil {
		return nil, err
	}
	size := len(items) / total
	if size < 1 {
		return nil, fmt.Errorf("cannot break %d items into %d slices: %w",
			len(items), total, domain.ErrInvalidSlice)
	}
	start := index * size
	end := start + size
	if index == total-1 {
		end = len(items)
	}
	return items[start:end], nil
}
