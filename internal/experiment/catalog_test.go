package experiment

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

type fakePager struct {
	pages [][]docstore.CompositeBucket
	err   error
}

func (f *fakePager) Next(context.Context) ([]docstore.CompositeBucket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func newTestCatalog(pager *fakePager) *Catalog {
	factory := func(index, aggName string, body map[string]any) BucketPager { return pager }
	return NewCatalog(factory, &fakeDocs{}, &fakeObjects{}, "bucket", "/tmp", zap.NewNop())
}

func experimentBucket(name string) docstore.CompositeBucket {
	return docstore.CompositeBucket{Key: map[string]any{"experiment_name": name}, DocCount: 1}
}

func TestCatalogListPagesToExhaustion(t *testing.T) {
	catalog := newTestCatalog(&fakePager{pages: [][]docstore.CompositeBucket{
		{experimentBucket("a"), experimentBucket("b")},
		{experimentBucket("c")},
	}})

	names, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 3 || names[0] != "a" || names[2] != "c" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCatalogListEmptyIndex(t *testing.T) {
	catalog := newTestCatalog(&fakePager{
		err: fmt.Errorf("matched no documents: %w", domain.ErrNoAfterKey),
	})

	names, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("an empty index is not an error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCatalogOpenScopesName(t *testing.T) {
	catalog := newTestCatalog(&fakePager{})
	exp := catalog.Open("exp", true)
	if exp.Name != "exp" {
		t.Fatalf("unexpected experiment %q", exp.Name)
	}
}
