// Package docstore is the gateway to the search-index-backed document
// store: idempotent bulk indexing, terms aggregations, scans, and
// composite-aggregation paging over Elasticsearch.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

// DefaultAggSize bounds the bucket count of terms aggregations. It must be
// high enough to capture every distinct value of a dimension field in one
// round trip; tens of thousands is the expected cardinality ceiling.
const DefaultAggSize = 100000

const defaultAttempts = 3

// Config holds document store connection settings.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	CACert    []byte

	// Transport overrides the HTTP transport; tests inject a fake here.
	Transport http.RoundTripper

	// AggSize overrides DefaultAggSize when > 0.
	AggSize int
}

// Gateway executes queries against the document store. All remote calls
// are retried a bounded number of times with exponential backoff for
// transient failures only.
type Gateway struct {
	es       *elasticsearch.Client
	log      *zap.Logger
	aggSize  int
	attempts uint64
}

// New creates a document store gateway.
func New(cfg Config, log *zap.Logger) (*Gateway, error) {
	if cfg.Username != "" && cfg.Password == "" {
		return nil, fmt.Errorf("user %s: %w", cfg.Username, domain.ErrMissingCredentials)
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		CACert:    cfg.CACert,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	aggSize := cfg.AggSize
	if aggSize <= 0 {
		aggSize = DefaultAggSize
	}
	return &Gateway{es: es, log: log, aggSize: aggSize, attempts: defaultAttempts}, nil
}

// CheckCluster verifies the cluster is reachable and not red. A red status
// is fatal and never retried.
func (g *Gateway) CheckCluster(ctx context.Context) error {
	res, err := g.es.Cluster.Health(g.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return &Error{Op: OpHealth, Err: fmt.Errorf("cluster unreachable: %w", err)}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &Error{Op: OpHealth, Err: responseError(res)}
	}
	var health struct {
		ClusterName string `json:"cluster_name"`
		Status      string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return &Error{Op: OpHealth, Err: fmt.Errorf("decode health: %w", err)}
	}
	g.log.Info("connected to document store",
		zap.String("cluster", health.ClusterName),
		zap.String("status", health.Status),
	)
	if health.Status == "red" {
		return &Error{Op: OpHealth, Err: fmt.Errorf("cluster %q: %w", health.ClusterName, domain.ErrClusterRed)}
	}
	return nil
}

// statusError is a non-2xx response from the document store.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func responseError(res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	return &statusError{status: res.StatusCode, body: string(bytes.TrimSpace(body))}
}

// isTransient reports whether an error is worth retrying: transport
// failures and 5xx/429 responses are, everything else (malformed query,
// missing index, auth) is not.
func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500 || se.status == http.StatusTooManyRequests
	}
	return true
}

func (g *Gateway) withRetry(ctx context.Context, op string, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	err := backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			g.log.Warn("document store call failed, retrying",
				zap.String("op", op), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, g.attempts-1), ctx))
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return nil
}

// hitsEnvelope is the subset of a search response the gateway reads.
type hitsEnvelope struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// search runs one search request and decodes the envelope. The caller is
// responsible for retry wrapping.
func (g *Gateway) search(ctx context.Context, index string, body map[string]any, size int, scroll time.Duration) (*hitsEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	opts := []func(*esapi.SearchRequest){
		g.es.Search.WithContext(ctx),
		g.es.Search.WithIndex(index),
		g.es.Search.WithBody(bytes.NewReader(payload)),
		g.es.Search.WithSize(size),
	}
	if scroll > 0 {
		opts = append(opts, g.es.Search.WithScroll(scroll))
	}
	res, err := g.es.Search(opts...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError(res)
	}
	var env hitsEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env, nil
}
