package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

// BucketPager pages composite aggregation buckets; exhaustion is (nil, nil).
type BucketPager interface {
	Next(ctx context.Context) ([]docstore.CompositeBucket, error)
}

// PagerFactory opens a fresh pager per enumeration; pagers are single-use.
type PagerFactory func(index, aggName string, body map[string]any) BucketPager

// Catalog enumerates the experiments present in the colorgrams index and
// opens experiment scopes on demand.
type Catalog struct {
	pagers     PagerFactory
	docs       DocumentStore
	objects    ObjectStore
	bucket     string
	localStore string
	log        *zap.Logger
}

func NewCatalog(pagers PagerFactory, docs DocumentStore, objects ObjectStore, bucket, localStore string, log *zap.Logger) *Catalog {
	return &Catalog{
		pagers:     pagers,
		docs:       docs,
		objects:    objects,
		bucket:     bucket,
		localStore: localStore,
		log:        log,
	}
}

const listPageSize = 100

// List returns the distinct experiment names with indexed colorgrams. An
// empty index yields an empty list.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	body := map[string]any{
		"aggregations": map[string]any{
			"experiments": map[string]any{
				"composite": map[string]any{
					"size": listPageSize,
					"sources": []any{
						map[string]any{
							"experiment_name": map[string]any{
								"terms": map[string]any{"field": "experiment_name"},
							},
						},
					},
				},
			},
		},
	}
	pager := c.pagers(domain.ColorgramsIndex, "experiments", body)

	var names []string
	for {
		buckets, err := pager.Next(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNoAfterKey) {
				return nil, nil
			}
			return nil, fmt.Errorf("list experiments: %w", err)
		}
		if buckets == nil {
			return names, nil
		}
		for _, bucket := range buckets {
			if name, ok := bucket.Key["experiment_name"].(string); ok {
				names = append(names, name)
			}
		}
	}
}

// Open scopes operations to one experiment.
func (c *Catalog) Open(name string, dryRun bool) *Experiment {
	return New(name, c.bucket, c.localStore, c.docs, c.objects, dryRun, c.log)
}

// Get looks one search term up within an experiment.
func (c *Catalog) Get(ctx context.Context, experimentName, word string) ([]GetResult, error) {
	return c.Open(experimentName, false).Get(ctx, word)
}
