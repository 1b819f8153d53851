package trial

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

type indexedBatch struct {
	index    string
	docs     []map[string]any
	identity []string
}

type fakeDocs struct {
	searched map[string]bool // query -> already indexed
	existsCalls int
	batches  []indexedBatch
}

func (f *fakeDocs) Exists(_ context.Context, _ string, doc map[string]any, _ []string, _ bool) (bool, error) {
	f.existsCalls++
	query, _ := doc["query"].(string)
	return f.searched[query], nil
}

func (f *fakeDocs) BulkIndex(_ context.Context, index string, docs []map[string]any, identityFields []string, _ bool) (docstore.IndexStats, error) {
	f.batches = append(f.batches, indexedBatch{index: index, docs: docs, identity: identityFields})
	return docstore.IndexStats{Indexed: len(docs)}, nil
}

func (f *fakeDocs) batchesFor(index string) []indexedBatch {
	var out []indexedBatch
	for _, b := range f.batches {
		if b.index == index {
			out = append(out, b)
		}
	}
	return out
}

type putCall struct {
	bucket, key string
	overwrite   bool
}

type fakeObjects struct {
	puts []putCall
}

func (f *fakeObjects) Put(_ context.Context, bucket, key string, _ []byte, overwrite bool) error {
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, overwrite: overwrite})
	return nil
}

// fakeExec plays the query-runner: on success it leaves a manifest and
// downloaded images where the real subprocess would.
type fakeExec struct {
	t              *testing.T
	localStore     string
	trialID        string
	hostname       string
	failures       int // fail this many calls before succeeding
	timeoutQueries map[string]bool
	skipManifest   bool
	imagesPerQuery int

	calls   int
	queries []string
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (f *fakeExec) Run(_ context.Context, _ string, args ...string) error {
	f.calls++
	query := argValue(args, "--query-terms")
	f.queries = append(f.queries, query)
	if f.timeoutQueries[query] {
		return context.DeadlineExceeded
	}
	if f.calls <= f.failures {
		return fmt.Errorf("exit status 1")
	}
	if f.skipManifest {
		return nil
	}

	ranAt := argValue(args, "--ran-at")
	var images []domain.RawImage
	downloads := filepath.Join(f.localStore, f.trialID, f.hostname, ranAt)
	for i := 0; i < f.imagesPerQuery; i++ {
		img := domain.RawImage{
			TrialID:  f.trialID,
			Hostname: f.hostname,
			Query:    query,
			RanAt:    ranAt,
			ImageID:  fmt.Sprintf("%s-img-%d", query, i),
			ImageURL: "https://example.com/img.jpg",
		}
		images = append(images, img)
		imgPath := filepath.Join(downloads, "images", img.ImageID+".jpg")
		if err := os.MkdirAll(filepath.Dir(imgPath), 0o755); err != nil {
			f.t.Fatal(err)
		}
		if err := os.WriteFile(imgPath, []byte("jpeg"), 0o644); err != nil {
			f.t.Fatal(err)
		}
	}
	body, err := json.Marshal(images)
	if err != nil {
		f.t.Fatal(err)
	}
	manifest := ManifestPath(f.localStore, f.trialID, f.hostname, ranAt)
	if err := os.MkdirAll(filepath.Dir(manifest), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(manifest, body, 0o644); err != nil {
		f.t.Fatal(err)
	}
	return nil
}
