package vectors

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

type fakeProducer struct {
	calls []string
}

func (f *fakeProducer) Vectorize(_ context.Context, dir string) (Artifact, error) {
	f.calls = append(f.calls, filepath.Base(dir))
	return Artifact{
		PNG:     []byte("png"),
		RGBDist: domain.Distribution{0.5, math.NaN()},
	}, nil
}

func writeGroup(t *testing.T, root, name string, images ...string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, img := range images {
		if err := os.WriteFile(filepath.Join(dir, img), []byte("jpeg"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeGroup(t, root, "query=cat|region=us", "img-1.jpg", "img-2.jpg")
	producer := &fakeProducer{}

	results, err := Collect(context.Background(), root, producer, zap.NewNop())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	doc := results[0].Doc
	if doc.Dims["query"] != "cat" || doc.Dims["region"] != "us" {
		t.Fatalf("dims not parsed from folder name: %v", doc.Dims)
	}
	want := domain.TagsHash([]string{"query=cat", "region=us"})
	if doc.S3Key != want {
		t.Fatalf("s3 key %q, want tag hash %q", doc.S3Key, want)
	}
	if len(doc.Downloads) != 2 || doc.Downloads[0] != "img-1" || doc.Downloads[1] != "img-2" {
		t.Fatalf("downloads must be image stems, got %v", doc.Downloads)
	}
	if string(results[0].PNG) != "png" {
		t.Fatalf("artifact bytes not carried through")
	}
}

func TestCollectEmptyGroupIsFatal(t *testing.T) {
	root := t.TempDir()
	writeGroup(t, root, "query=cat")

	_, err := Collect(context.Background(), root, &fakeProducer{}, zap.NewNop())
	if !errors.Is(err, domain.ErrEmptyGroup) {
		t.Fatalf("expected ErrEmptyGroup, got %v", err)
	}
}

func TestCollectMalformedFolderNameIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeGroup(t, root, "query=cat", "img-1.jpg")
	writeGroup(t, root, "not-a-tag", "img-2.jpg")
	producer := &fakeProducer{}

	results, err := Collect(context.Background(), root, producer, zap.NewNop())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("malformed folder must be skipped, not fatal; got %d results", len(results))
	}
	if len(producer.calls) != 1 || producer.calls[0] != "query=cat" {
		t.Fatalf("producer ran on unexpected folders: %v", producer.calls)
	}
}

func TestCollectIgnoresLooseFiles(t *testing.T) {
	root := t.TempDir()
	writeGroup(t, root, "query=cat", "img-1.jpg")
	if err := os.WriteFile(filepath.Join(root, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	results, err := Collect(context.Background(), root, &fakeProducer{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}
