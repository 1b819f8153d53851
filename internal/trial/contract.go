package trial

import (
	"context"

	"colorsweep/internal/docstore"
	"colorsweep/internal/vectors"
)

// DocumentStore is the slice of the document-store gateway the runner
// needs: the already-searched check and idempotent bulk indexing.
type DocumentStore interface {
	Exists(ctx context.Context, index string, doc map[string]any, identityFields []string, overwrite bool) (bool, error)
	BulkIndex(ctx context.Context, index string, docs []map[string]any, identityFields []string, overwrite bool) (docstore.IndexStats, error)
}

// ObjectStore uploads produced colorgram artifacts.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, body []byte, overwrite bool) error
}

// CommandRunner executes the external query-runner subprocess. The
// context carries the per-call timeout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ColorgramCollector produces colorgram documents from a downloads tree.
type ColorgramCollector func(ctx context.Context, downloadsPath string) ([]vectors.Result, error)
