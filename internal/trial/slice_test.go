package trial

import (
	"errors"
	"fmt"
	"testing"

	"colorsweep/internal/domain"
)

func TestSlicePartitions145IntoTen(t *testing.T) {
	items := make([]int, 145)
	for i := range items {
		items[i] = i
	}

	second, err := Slice(items, "1 of 10")
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(second) != 14 || second[0] != 14 || second[13] != 27 {
		t.Fatalf("slice 1 of 10: got len %d starting at %d", len(second), second[0])
	}

	// the union of all ten slices, in order, reconstructs the input;
	// the last slice absorbs the division remainder
	var union []int
	for i := 0; i < 10; i++ {
		chunk, err := Slice(items, fmt.Sprintf("%d of 10", i))
		if err != nil {
			t.Fatalf("slice %d: %v", i, err)
		}
		union = append(union, chunk...)
	}
	if len(union) != 145 {
		t.Fatalf("union has %d items, want 145", len(union))
	}
	for i, v := range union {
		if v != i {
			t.Fatalf("union[%d] = %d, items lost or reordered", i, v)
		}
	}

	last, _ := Slice(items, "9 of 10")
	if len(last) != 14+5 {
		t.Fatalf("last slice must absorb the remainder, got len %d", len(last))
	}
}

func TestSliceSlashSeparator(t *testing.T) {
	got, err := Slice([]string{"a", "b", "c", "d"}, "1/2")
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(got) != 2 || got[0] != "c" {
		t.Fatalf("got %v, want [c d]", got)
	}
}

func TestSliceInvalidSpecs(t *testing.T) {
	items := []string{"a", "b", "c"}
	for _, spec := range []string{
		"nonsense",
		"1 of x",
		"x of 2",
		"1 of 0",
		"-1 of 2",
		"2 of 2",
		"0 of 4", // more slices than items
	} {
		if _, err := Slice(items, spec); !errors.Is(err, domain.ErrInvalidSlice) {
			t.Errorf("spec %q: expected ErrInvalidSlice, got %v", spec, err)
		}
	}
}
