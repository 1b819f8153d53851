package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"colorsweep/internal/domain"
)

// CompositeBucket is one bucket of a composite aggregation page.
type CompositeBucket struct {
	Key      map[string]any `json:"key"`
	DocCount int64          `json:"doc_count"`
}

// CompositePager pages through a composite aggregation by re-submitting
// the same query with the previous response's after_key cursor injected.
//
// The pager is not restartable: each Next advances server-side cursor
// state, so a fresh pager is required to read the sequence again.
type CompositePager struct {
	gateway *Gateway
	index   string
	aggName string
	body    map[string]any
	first   bool
	done    bool
}

// NewCompositePager prepares paging for the named composite aggregation.
// body is the full query body, including "aggregations": {aggName:
// {"composite": {...}}}; the pager mutates its composite source to inject
// the cursor between pages.
func (g *Gateway) NewCompositePager(index, aggName string, body map[string]any) *CompositePager {
	return &CompositePager{gateway: g, index: index, aggName: aggName, body: body, first: true}
}

// Next returns the next page of buckets. Exhaustion is signaled explicitly
// by (nil, nil). A first page with no continuation cursor and no buckets
// means zero documents matched; that surfaces as ErrNoAfterKey, which is
// distinguishable from genuine exhaustion.
func (p *CompositePager) Next(ctx context.Context) ([]CompositeBucket, error) {
	if p.done {
		return nil, nil
	}

	var env *hitsEnvelope
	err := p.gateway.withRetry(ctx, OpSearch, func() error {
		var err error
		env, err = p.gateway.search(ctx, p.index, p.body, 0, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	raw, ok := env.Aggregations[p.aggName]
	if !ok {
		return nil, fmt.Errorf("no aggregation %q in response: %w", p.aggName, domain.ErrNoAfterKey)
	}
	var agg struct {
		AfterKey map[string]any    `json:"after_key"`
		Buckets  []CompositeBucket `json:"buckets"`
	}
	if err := json.Unmarshal(raw, &agg); err != nil {
		return nil, fmt.Errorf("decode composite aggregation: %w", err)
	}

	if agg.AfterKey == nil {
		if p.first && len(agg.Buckets) == 0 {
			return nil, fmt.Errorf("aggregation %q matched no documents: %w", p.aggName, domain.ErrNoAfterKey)
		}
		p.done = true
	} else {
		p.injectAfter(agg.AfterKey)
	}
	p.first = false

	if len(agg.Buckets) == 0 {
		p.done = true
		return nil, nil
	}
	return agg.Buckets, nil
}

func (p *CompositePager) injectAfter(after map[string]any) {
	aggs, ok := p.body["aggregations"].(map[string]any)
	if !ok {
		if aggs, ok = p.body["aggs"].(map[string]any); !ok {
			return
		}
	}
	if agg, ok := aggs[p.aggName].(map[string]any); ok {
		if composite, ok := agg["composite"].(map[string]any); ok {
			composite["after"] = after
		}
	}
}
