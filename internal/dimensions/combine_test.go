package dimensions

import (
	"errors"
	"testing"

	"colorsweep/internal/domain"
)

func TestCombineTwoByOne(t *testing.T) {
	combos, err := Combine(map[string][]string{
		"A": {"a1", "a2"},
		"B": {"b1"},
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(combos) != 2 {
		t.Fatalf("got %d combinations, want 2", len(combos))
	}
	for _, combo := range combos {
		found := false
		for _, term := range combo.Terms {
			if term.Field == "B" && term.Value == "b1" {
				found = true
			}
		}
		if !found {
			t.Fatalf("combination %s is missing B=b1", combo.Slug())
		}
	}
}

func TestCombineProductCount(t *testing.T) {
	combos, err := Combine(map[string][]string{
		"query":  {"cat", "dog", "bird"},
		"region": {"us", "eu"},
		"domain": {"a", "b", "c", "d"},
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(combos) != 3*2*4 {
		t.Fatalf("got %d combinations, want %d", len(combos), 3*2*4)
	}

	// every combination exactly once
	seen := make(map[string]bool, len(combos))
	for _, combo := range combos {
		slug := combo.Slug().String()
		if seen[slug] {
			t.Fatalf("duplicate combination %s", slug)
		}
		seen[slug] = true
	}
}

func TestCombineDeterministicSlugOrder(t *testing.T) {
	combos, err := Combine(map[string][]string{
		"region": {"us"},
		"query":  {"cat"},
	})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if got := combos[0].Slug().String(); got != "query=cat|region=us" {
		t.Fatalf("got slug %q", got)
	}
}

func TestCombineEmptyInput(t *testing.T) {
	if _, err := Combine(nil); !errors.Is(err, domain.ErrNoQueries) {
		t.Fatalf("expected ErrNoQueries, got %v", err)
	}
}

func TestCombineEmptyValueSet(t *testing.T) {
	_, err := Combine(map[string][]string{
		"query":  {"cat"},
		"region": {},
	})
	if !errors.Is(err, domain.ErrNoQueries) {
		t.Fatalf("expected ErrNoQueries for empty value set, got %v", err)
	}
}
