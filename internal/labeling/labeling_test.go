package labeling

import (
	"context"
	"testing"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

func sampleParams() []LayoutParameter {
	return []LayoutParameter{
		{Name: "image_url", Value: "https://bucket.s3.us-east-1.amazonaws.com/exp/faces/img-1-0.jpg"},
		{Name: "search_term", Value: "cat"},
	}
}

func TestInternalHitIDIsStable(t *testing.T) {
	a, err := InternalHitID("img-1-0", "type-1", "layout-1", sampleParams())
	if err != nil {
		t.Fatalf("InternalHitID: %v", err)
	}
	b, _ := InternalHitID("img-1-0", "type-1", "layout-1", sampleParams())
	if a != b {
		t.Fatalf("same inputs must hash identically: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a sha256 hex digest, got %q", a)
	}

	c, _ := InternalHitID("img-1-0", "type-2", "layout-1", sampleParams())
	if a == c {
		t.Fatal("changing the hit type must change the id")
	}
	d, _ := InternalHitID("img-1-0", "type-1", "layout-1", []LayoutParameter{
		{Name: "search_term", Value: "dog"},
	})
	if a == d {
		t.Fatal("changing layout parameters must change the id")
	}
}

type fakeStore struct {
	index    string
	docs     []map[string]any
	identity []string
	calls    int
}

func (f *fakeStore) BulkIndex(_ context.Context, index string, docs []map[string]any, identityFields []string, _ bool) (docstore.IndexStats, error) {
	f.calls++
	f.index = index
	f.docs = docs
	f.identity = identityFields
	return docstore.IndexStats{Indexed: len(docs)}, nil
}

func TestIndexHits(t *testing.T) {
	store := &fakeStore{}
	hits := []HitDocument{{
		FaceID:           "img-1-0",
		HitTypeID:        "type-1",
		HitLayoutID:      "layout-1",
		LayoutParameters: sampleParams(),
		Metadata:         map[string]string{"trial_id": "t1"},
	}}

	stats, err := IndexHits(context.Background(), store, hits)
	if err != nil {
		t.Fatalf("IndexHits: %v", err)
	}
	if stats.Indexed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if store.index != domain.HitsIndex {
		t.Fatalf("indexed into %q", store.index)
	}
	if len(store.identity) != 1 || store.identity[0] != "internal_hit_id" {
		t.Fatalf("unexpected identity fields %v", store.identity)
	}
	doc := store.docs[0]
	if doc["hit_state"] != "indexed" {
		t.Fatalf("default hit state not applied: %v", doc)
	}
	if doc["trial_id"] != "t1" {
		t.Fatalf("shared metadata not merged: %v", doc)
	}
	if id, _ := doc["internal_hit_id"].(string); len(id) != 64 {
		t.Fatalf("internal hit id missing: %v", doc)
	}
}

func TestIndexHitsEmptyBatch(t *testing.T) {
	store := &fakeStore{}
	stats, err := IndexHits(context.Background(), store, nil)
	if err != nil {
		t.Fatalf("IndexHits: %v", err)
	}
	if stats.Indexed != 0 || store.calls != 0 {
		t.Fatal("an empty batch must not hit the store")
	}
}
