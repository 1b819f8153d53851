package assemble

import (
	"context"
	"encoding/json"

	"colorsweep/internal/docstore"
)

// DocumentSource is the consumer interface over the document store.
type DocumentSource interface {
	FieldValues(ctx context.Context, index, field string, filter []docstore.Clause) ([]string, error)
	Scan(ctx context.Context, index string, filter []docstore.Clause, fn func(source json.RawMessage) error) error
}

// ObjectFetcher pulls image bytes from the object store.
type ObjectFetcher interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// ConfirmFunc decides whether an existing downloads directory may be
// cleared. Returning false proceeds without clearing: new results mix
// with what is already there. Injecting the strategy keeps the engine
// testable without a terminal attached.
type ConfirmFunc func(prompt string) bool

// NoConfirm waives prompting: nothing is cleared, data will mix.
func NoConfirm(string) bool { return false }
