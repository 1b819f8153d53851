package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

type fakeDocs struct {
	rawImages      []domain.RawImage
	colorgrams     []domain.Colorgram
	deletedIndexes []string
}

func (f *fakeDocs) Scan(_ context.Context, index string, filter []docstore.Clause, fn func(json.RawMessage) error) error {
	queryFilter := scanQueryFilter(filter)
	switch index {
	case domain.RawImagesIndex:
		for _, img := range f.rawImages {
			data, _ := json.Marshal(img)
			if err := fn(data); err != nil {
				return err
			}
		}
	case domain.ColorgramsIndex:
		for _, cg := range f.colorgrams {
			if queryFilter != "" && cg.Dims["query"] != queryFilter {
				continue
			}
			data, _ := json.Marshal(cg)
			if err := fn(data); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanQueryFilter digs an optional query term out of the filter body.
func scanQueryFilter(filter []docstore.Clause) string {
	body, _ := json.Marshal(docstore.FilterBody(filter))
	var q struct {
		Query struct {
			Bool struct {
				Filter []map[string]map[string]string `json:"filter"`
			} `json:"bool"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &q); err != nil {
		return ""
	}
	for _, clause := range q.Query.Bool.Filter {
		if term, ok := clause["term"]; ok {
			if v, ok := term["query"]; ok {
				return v
			}
		}
	}
	return ""
}

func (f *fakeDocs) DeleteByQuery(_ context.Context, index string, _ []docstore.Clause) (int64, error) {
	f.deletedIndexes = append(f.deletedIndexes, index)
	switch index {
	case domain.RawImagesIndex:
		return int64(len(f.rawImages)), nil
	case domain.ColorgramsIndex:
		return int64(len(f.colorgrams)), nil
	}
	return 0, nil
}

type fakeObjects struct {
	objects map[string][]byte
	fetches int
	deletes []string
}

func (f *fakeObjects) Get(_ context.Context, _, key string) ([]byte, error) {
	f.fetches++
	body, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrObjectNotFound)
	}
	return body, nil
}

func (f *fakeObjects) Delete(_ context.Context, _, key string) error {
	f.deletes = append(f.deletes, key)
	delete(f.objects, key)
	return nil
}

func testFixtures() (*fakeDocs, *fakeObjects) {
	img := domain.RawImage{
		TrialID: "t1", Hostname: "host-a", Query: "cat",
		TrialTimestamp: "2026-08-29T00:00:00Z", RanAt: "2026-08-29T00:00:00Z",
		ImageID: "img-1", ExperimentName: "exp",
	}
	cg := domain.Colorgram{
		ExperimentName: "exp",
		S3Key:          "abc123",
		Downloads:      []string{"img-1"},
		Dims:           map[string]string{"query": "cat"},
	}
	docs := &fakeDocs{rawImages: []domain.RawImage{img}, colorgrams: []domain.Colorgram{cg}}
	objects := &fakeObjects{objects: map[string][]byte{
		img.Path(): []byte("jpeg"),
		cg.Path():  []byte("png"),
	}}
	return docs, objects
}

func TestPullSyncsColorgrams(t *testing.T) {
	docs, objects := testFixtures()
	localStore := t.TempDir()
	exp := New("exp", "bucket", localStore, docs, objects, false, zap.NewNop())

	stats, err := exp.Pull(context.Background(), false)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Colorgrams != 1 || stats.RawImages != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(localStore, "exp", "abc123")); err != nil {
		t.Fatalf("colorgram artifact not synced: %v", err)
	}

	// a second pull finds the local copy and does not refetch
	before := objects.fetches
	if _, err := exp.Pull(context.Background(), false); err != nil {
		t.Fatalf("second Pull: %v", err)
	}
	if objects.fetches != before {
		t.Fatalf("second pull refetched already-synced artifacts")
	}
}

func TestPullRawImages(t *testing.T) {
	docs, objects := testFixtures()
	localStore := t.TempDir()
	exp := New("exp", "bucket", localStore, docs, objects, false, zap.NewNop())

	stats, err := exp.Pull(context.Background(), true)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.RawImages != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := os.Stat(filepath.Join(localStore, filepath.FromSlash(docs.rawImages[0].Path()))); err != nil {
		t.Fatalf("raw image not synced: %v", err)
	}
}

func TestPullDryRunFetchesNothing(t *testing.T) {
	docs, objects := testFixtures()
	exp := New("exp", "bucket", t.TempDir(), docs, objects, true, zap.NewNop())

	stats, err := exp.Pull(context.Background(), true)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if stats.Colorgrams != 1 || stats.RawImages != 1 {
		t.Fatalf("dry run must still count, got %+v", stats)
	}
	if objects.fetches != 0 {
		t.Fatalf("dry run fetched %d objects", objects.fetches)
	}
}

func TestGet(t *testing.T) {
	docs, objects := testFixtures()
	localStore := t.TempDir()
	exp := New("exp", "bucket", localStore, docs, objects, false, zap.NewNop())

	results, err := exp.Get(context.Background(), "cat")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Doc.S3Key != "abc123" {
		t.Fatalf("unexpected doc %+v", results[0].Doc)
	}
	if _, err := os.Stat(results[0].ArtifactPath); err != nil {
		t.Fatalf("artifact path not synced: %v", err)
	}
}

func TestGetUnknownWord(t *testing.T) {
	docs, objects := testFixtures()
	exp := New("exp", "bucket", t.TempDir(), docs, objects, false, zap.NewNop())

	_, err := exp.Get(context.Background(), "zebra")
	if !errors.Is(err, domain.ErrColorgramNotFound) {
		t.Fatalf("expected ErrColorgramNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	docs, objects := testFixtures()
	localStore := t.TempDir()
	exp := New("exp", "bucket", localStore, docs, objects, false, zap.NewNop())

	// seed a local copy to verify it is removed too
	localCopy := filepath.Join(localStore, "exp", "abc123")
	if err := os.MkdirAll(filepath.Dir(localCopy), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(localCopy, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	stats, err := exp.Delete(context.Background())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if stats.RawImages != 1 || stats.Colorgrams != 1 || stats.Documents != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(objects.deletes) != 2 {
		t.Fatalf("expected 2 object deletes, got %v", objects.deletes)
	}
	if len(docs.deletedIndexes) != 2 {
		t.Fatalf("expected delete-by-query on both indexes, got %v", docs.deletedIndexes)
	}
	if _, err := os.Stat(localCopy); !os.IsNotExist(err) {
		t.Fatalf("local artifact copy not removed")
	}
}

func TestDeleteDryRunCountsOnly(t *testing.T) {
	docs, objects := testFixtures()
	exp := New("exp", "bucket", t.TempDir(), docs, objects, true, zap.NewNop())

	stats, err := exp.Delete(context.Background())
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if stats.RawImages != 1 || stats.Colorgrams != 1 || stats.Documents != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(objects.deletes) != 0 || len(docs.deletedIndexes) != 0 {
		t.Fatalf("dry run deleted things: %v %v", objects.deletes, docs.deletedIndexes)
	}
}
