package docstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"colorsweep/internal/domain"
)

func compositeBody() map[string]any {
	return map[string]any{
		"query": map[string]any{"bool": map[string]any{"filter": []any{}}},
		"aggregations": map[string]any{
			"experiments": map[string]any{
				"composite": map[string]any{
					"size":    10,
					"sources": []any{map[string]any{"experiment_name": map[string]any{"terms": map[string]any{"field": "experiment_name"}}}},
				},
			},
		},
	}
}

func TestCompositePagerPages(t *testing.T) {
	pages := []string{
		`{"hits":{"hits":[]},"aggregations":{"experiments":{"after_key":{"experiment_name":"b"},"buckets":[
			{"key":{"experiment_name":"a"},"doc_count":3},
			{"key":{"experiment_name":"b"},"doc_count":1}
		]}}}`,
		`{"hits":{"hits":[]},"aggregations":{"experiments":{"buckets":[]}}}`,
	}
	var call int
	ft := &fakeTransport{handler: func(req recordedRequest) (int, string) {
		body := pages[call]
		if call == 1 && !strings.Contains(req.Body, `"after":{"experiment_name":"b"}`) {
			t.Fatalf("second page must carry the cursor: %s", req.Body)
		}
		call++
		return 200, body
	}}
	g := newTestGateway(t, ft)
	pager := g.NewCompositePager("colorgrams", "experiments", compositeBody())

	buckets, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Key["experiment_name"] != "a" {
		t.Fatalf("got %v", buckets)
	}

	buckets, err = pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if buckets != nil {
		t.Fatalf("expected exhaustion, got %v", buckets)
	}

	// exhausted pagers stay exhausted without another remote call
	if _, err := pager.Next(context.Background()); err != nil {
		t.Fatalf("Next after exhaustion: %v", err)
	}
	if call != 2 {
		t.Fatalf("expected 2 search calls, saw %d", call)
	}
}

func TestCompositePagerNoAfterKey(t *testing.T) {
	ft := &fakeTransport{handler: func(recordedRequest) (int, string) {
		return 200, `{"hits":{"hits":[]},"aggregations":{"experiments":{"buckets":[]}}}`
	}}
	g := newTestGateway(t, ft)
	pager := g.NewCompositePager("colorgrams", "experiments", compositeBody())

	_, err := pager.Next(context.Background())
	if !errors.Is(err, domain.ErrNoAfterKey) {
		t.Fatalf("expected ErrNoAfterKey, got %v", err)
	}
}

func TestCompositePagerFinalPartialPage(t *testing.T) {
	// the last page carries buckets but no cursor
	ft := &fakeTransport{handler: func(recordedRequest) (int, string) {
		return 200, `{"hits":{"hits":[]},"aggregations":{"experiments":{"buckets":[
			{"key":{"experiment_name":"z"},"doc_count":1}
		]}}}`
	}}
	g := newTestGateway(t, ft)
	pager := g.NewCompositePager("colorgrams", "experiments", compositeBody())

	buckets, err := pager.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("got %v", buckets)
	}
	buckets, err = pager.Next(context.Background())
	if err != nil || buckets != nil {
		t.Fatalf("expected clean exhaustion, got %v %v", buckets, err)
	}
}
