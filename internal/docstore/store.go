package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"colorsweep/internal/metrics"
)

const scrollKeepAlive = time.Minute

// FieldValues returns every distinct value of a field among documents
// matching the filter, via a terms aggregation sized to the gateway's
// bucket limit.
func (g *Gateway) FieldValues(ctx context.Context, index, field string, filter []Clause) ([]string, error) {
	body := FilterBody(filter)
	body["aggs"] = map[string]any{
		"all_values": map[string]any{
			"terms": map[string]any{"field": field, "size": g.aggSize},
		},
	}

	var env *hitsEnvelope
	err := g.withRetry(ctx, OpSearch, func() error {
		var err error
		env, err = g.search(ctx, index, body, 0, 0)
		return err
	})
	if err != nil {
		return nil, err
	}

	var agg struct {
		Buckets []struct {
			Key any `json:"key"`
		} `json:"buckets"`
	}
	if raw, ok := env.Aggregations["all_values"]; ok {
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, fmt.Errorf("decode %s aggregation: %w", field, err)
		}
	}
	values := make([]string, 0, len(agg.Buckets))
	for _, bucket := range agg.Buckets {
		values = append(values, fmt.Sprint(bucket.Key))
	}
	g.log.Debug("distinct field values",
		zap.String("field", field), zap.Int("count", len(values)))
	return values, nil
}

// Exists reports whether a document with the same identity-field values is
// already indexed. A doc missing any identity field does not exist (it is
// always indexed). With overwrite, every match is deleted and the document
// is reported absent so the caller indexes it fresh.
func (g *Gateway) Exists(ctx context.Context, index string, doc map[string]any, identityFields []string, overwrite bool) (bool, error) {
	clauses := make([]Clause, 0, len(identityFields))
	for _, field := range identityFields {
		value, ok := doc[field]
		if !ok {
			return false, nil
		}
		clauses = append(clauses, clauseForValue(field, value))
	}

	var env *hitsEnvelope
	err := g.withRetry(ctx, OpSearch, func() error {
		var err error
		env, err = g.search(ctx, index, FilterBody(clauses), 10, 0)
		return err
	})
	if err != nil {
		// an absent index means no document can exist yet
		if statusOf(err) == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}

	hits := env.Hits.Hits
	if len(hits) == 0 {
		return false, nil
	}
	if !overwrite {
		return true, nil
	}
	if len(hits) > 1 {
		g.log.Warn("multiple documents matched identity query",
			zap.String("index", index), zap.Int("matches", len(hits)))
	}
	for _, hit := range hits {
		g.log.Info("deleting existing document for overwrite",
			zap.String("index", index), zap.String("id", hit.ID))
		if err := g.deleteByID(ctx, index, hit.ID); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (g *Gateway) deleteByID(ctx context.Context, index, id string) error {
	return g.withRetry(ctx, OpDelete, func() error {
		res, err := g.es.Delete(index, id, g.es.Delete.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("delete %s/%s: %w", index, id, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}
		return nil
	})
}

// IndexStats summarizes one bulk indexing call.
type IndexStats struct {
	Indexed int
	Skipped int
}

// BulkIndex indexes docs that do not already exist by identity. When
// identityFields is non-nil the index is refreshed first so documents
// written moments ago are visible to the existence check; without the
// refresh, rapid repeated runs can double-index.
func (g *Gateway) BulkIndex(ctx context.Context, index string, docs []map[string]any, identityFields []string, overwrite bool) (IndexStats, error) {
	var stats IndexStats

	if identityFields != nil {
		if err := g.refresh(ctx, index); err != nil {
			return stats, err
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if identityFields != nil {
			exists, err := g.Exists(ctx, index, doc, identityFields, overwrite)
			if err != nil {
				return stats, err
			}
			if exists {
				stats.Skipped++
				continue
			}
		}
		if err := enc.Encode(map[string]any{"index": map[string]any{"_index": index}}); err != nil {
			return stats, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return stats, fmt.Errorf("encode bulk doc: %w", err)
		}
		stats.Indexed++
	}

	if stats.Indexed == 0 {
		g.log.Info("no documents to index",
			zap.String("index", index), zap.Int("skipped", stats.Skipped))
		return stats, nil
	}

	err := g.withRetry(ctx, OpBulk, func() error {
		res, err := g.es.Bulk(bytes.NewReader(buf.Bytes()), g.es.Bulk.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("bulk submit: %w", err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}
		var result struct {
			Errors bool `json:"errors"`
			Items  []map[string]struct {
				Status int    `json:"status"`
				Error  any    `json:"error"`
				ID     string `json:"_id"`
			} `json:"items"`
		}
		if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode bulk response: %w", err)
		}
		if result.Errors {
			for _, item := range result.Items {
				for _, op := range item {
					if op.Error != nil {
						return &statusError{status: op.Status, body: fmt.Sprint(op.Error)}
					}
				}
			}
			return fmt.Errorf("bulk response reported errors")
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	metrics.DocumentsIndexed.WithLabelValues(index).Add(float64(stats.Indexed))
	metrics.DocumentsSkipped.WithLabelValues(index).Add(float64(stats.Skipped))
	g.log.Info("bulk indexing complete",
		zap.String("index", index),
		zap.Int("indexed", stats.Indexed),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func (g *Gateway) refresh(ctx context.Context, index string) error {
	return g.withRetry(ctx, OpRefresh, func() error {
		res, err := g.es.Indices.Refresh(
			g.es.Indices.Refresh.WithContext(ctx),
			g.es.Indices.Refresh.WithIndex(index),
			g.es.Indices.Refresh.WithIgnoreUnavailable(true),
		)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", index, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}
		return nil
	})
}

// Scan streams the source of every document matching the filter through fn,
// using the scroll API. fn returning an error aborts the scan.
func (g *Gateway) Scan(ctx context.Context, index string, filter []Clause, fn func(source json.RawMessage) error) error {
	var env *hitsEnvelope
	err := g.withRetry(ctx, OpSearch, func() error {
		var err error
		env, err = g.search(ctx, index, FilterBody(filter), 1000, scrollKeepAlive)
		return err
	})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil
		}
		return err
	}
	scrollID := env.ScrollID
	defer g.clearScroll(scrollID)

	for len(env.Hits.Hits) > 0 {
		for _, hit := range env.Hits.Hits {
			if err := fn(hit.Source); err != nil {
				return err
			}
		}
		err := g.withRetry(ctx, OpScroll, func() error {
			res, err := g.es.Scroll(
				g.es.Scroll.WithContext(ctx),
				g.es.Scroll.WithScrollID(scrollID),
				g.es.Scroll.WithScroll(scrollKeepAlive),
			)
			if err != nil {
				return fmt.Errorf("scroll %s: %w", index, err)
			}
			defer res.Body.Close()
			if res.IsError() {
				return responseError(res)
			}
			env = &hitsEnvelope{}
			if err := json.NewDecoder(res.Body).Decode(env); err != nil {
				return fmt.Errorf("decode scroll response: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if env.ScrollID != "" {
			scrollID = env.ScrollID
		}
	}
	return nil
}

func (g *Gateway) clearScroll(scrollID string) {
	if scrollID == "" {
		return
	}
	res, err := g.es.ClearScroll(g.es.ClearScroll.WithScrollID(scrollID))
	if err != nil {
		g.log.Debug("clear scroll failed", zap.Error(err))
		return
	}
	res.Body.Close()
}

// DeleteByQuery removes every document matching the filter and returns the
// deleted count.
func (g *Gateway) DeleteByQuery(ctx context.Context, index string, filter []Clause) (int64, error) {
	payload, err := json.Marshal(FilterBody(filter))
	if err != nil {
		return 0, fmt.Errorf("marshal delete query: %w", err)
	}
	var deleted int64
	err = g.withRetry(ctx, OpDeleteByQuery, func() error {
		res, err := g.es.DeleteByQuery(
			[]string{index},
			bytes.NewReader(payload),
			g.es.DeleteByQuery.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("delete by query %s: %w", index, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return responseError(res)
		}
		var result struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
			return fmt.Errorf("decode delete response: %w", err)
		}
		deleted = result.Deleted
		return nil
	})
	if err != nil {
		return 0, err
	}
	g.log.Info("deleted documents",
		zap.String("index", index), zap.Int64("deleted", deleted))
	return deleted, nil
}

// statusOf extracts the HTTP status from a wrapped statusError, or 0.
func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}
