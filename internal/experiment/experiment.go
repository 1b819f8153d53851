// Package experiment exposes experiment-scoped operations over the
// indexed documents and their object-store artifacts: enumeration,
// pulling artifacts to the local store, lookup by search term, and full
// deletion.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

// DocumentStore is the slice of the document-store gateway experiment
// operations need.
type DocumentStore interface {
	Scan(ctx context.Context, index string, filter []docstore.Clause, fn func(source json.RawMessage) error) error
	DeleteByQuery(ctx context.Context, index string, filter []docstore.Clause) (int64, error)
}

// ObjectStore fetches and deletes experiment artifacts.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Experiment scopes operations to one named experiment.
type Experiment struct {
	Name string

	bucket     string
	localStore string
	docs       DocumentStore
	objects    ObjectStore
	dryRun     bool
	log        *zap.Logger
}

func New(name, bucket, localStore string, docs DocumentStore, objects ObjectStore, dryRun bool, log *zap.Logger) *Experiment {
	if dryRun {
		log = log.With(zap.String("mode", "DRY_RUN"))
	}
	return &Experiment{
		Name:       name,
		bucket:     bucket,
		localStore: localStore,
		docs:       docs,
		objects:    objects,
		dryRun:     dryRun,
		log:        log.With(zap.String("experiment", name)),
	}
}

func (e *Experiment) filter() []docstore.Clause {
	return []docstore.Clause{docstore.Term("experiment_name", e.Name)}
}

// RawImages streams every raw-image document of this experiment.
func (e *Experiment) RawImages(ctx context.Context, fn func(domain.RawImage) error) error {
	return e.docs.Scan(ctx, domain.RawImagesIndex, e.filter(), func(source json.RawMessage) error {
		var img domain.RawImage
		if err := json.Unmarshal(source, &img); err != nil {
			return fmt.Errorf("decode raw image: %w", err)
		}
		return fn(img)
	})
}

// Colorgrams streams every colorgram document of this experiment.
func (e *Experiment) Colorgrams(ctx context.Context, fn func(domain.Colorgram) error) error {
	return e.docs.Scan(ctx, domain.ColorgramsIndex, e.filter(), func(source json.RawMessage) error {
		var cg domain.Colorgram
		if err := json.Unmarshal(source, &cg); err != nil {
			return fmt.Errorf("decode colorgram: %w", err)
		}
		return fn(cg)
	})
}

// syncObject mirrors one object-store key into the local store, fetching
// only when the local copy is absent, and returns the local path.
func (e *Experiment) syncObject(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(e.localStore, filepath.FromSlash(key))
	if _, err := os.Stat(localPath); err == nil {
		return localPath, nil
	}
	body, err := e.objects.Get(ctx, e.bucket, key)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", fmt.Errorf("create local dir: %w", err)
	}
	if err := os.WriteFile(localPath, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	return localPath, nil
}

// PullStats reports how many artifacts a pull walked.
type PullStats struct {
	Colorgrams int
	RawImages  int
}

// Pull mirrors this experiment's colorgram artifacts, and optionally its
// raw images, into the local store. Dry-run counts without fetching.
func (e *Experiment) Pull(ctx context.Context, pullRawImages bool) (PullStats, error) {
	var stats PullStats
	err := e.Colorgrams(ctx, func(cg domain.Colorgram) error {
		stats.Colorgrams++
		if e.dryRun {
			return nil
		}
		_, err := e.syncObject(ctx, cg.Path())
		return err
	})
	if err != nil {
		return stats, err
	}
	e.log.Info("pulled colorgrams",
		zap.Int("count", stats.Colorgrams), zap.String("local_store", e.localStore))

	if pullRawImages {
		err := e.RawImages(ctx, func(img domain.RawImage) error {
			stats.RawImages++
			if e.dryRun {
				return nil
			}
			_, err := e.syncObject(ctx, img.Path())
			return err
		})
		if err != nil {
			return stats, err
		}
		e.log.Info("pulled raw images",
			zap.Int("count", stats.RawImages), zap.String("local_store", e.localStore))
	}
	return stats, nil
}

// GetResult is one colorgram matched by Get, with its artifact mirrored
// locally.
type GetResult struct {
	Doc          domain.Colorgram
	ArtifactPath string
}

// Get returns the colorgrams produced for one search term in this
// experiment, syncing each artifact to the local store.
func (e *Experiment) Get(ctx context.Context, word string) ([]GetResult, error) {
	filter := append(e.filter(), docstore.Term("query", word))
	var results []GetResult
	err := e.docs.Scan(ctx, domain.ColorgramsIndex, filter, func(source json.RawMessage) error {
		var cg domain.Colorgram
		if err := json.Unmarshal(source, &cg); err != nil {
			return fmt.Errorf("decode colorgram: %w", err)
		}
		localPath, err := e.syncObject(ctx, cg.Path())
		if err != nil {
			return err
		}
		results = append(results, GetResult{Doc: cg, ArtifactPath: localPath})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no colorgram for %q from %s: %w", word, e.Name, domain.ErrColorgramNotFound)
	}
	if len(results) > 1 {
		e.log.Info("more than one colorgram for term", zap.String("query", word))
	}
	return results, nil
}

// DeleteStats reports what a delete removed, or would remove in dry-run.
type DeleteStats struct {
	RawImages  int
	Colorgrams int
	Documents  int64
}

// Delete removes this experiment entirely: object-store artifacts, local
// copies, and indexed documents. Dry-run walks the same documents and
// reports counts without removing anything.
func (e *Experiment) Delete(ctx context.Context) (DeleteStats, error) {
	var stats DeleteStats

	err := e.RawImages(ctx, func(img domain.RawImage) error {
		stats.RawImages++
		if e.dryRun {
			return nil
		}
		if err := e.objects.Delete(ctx, e.bucket, img.Path()); err != nil {
			return err
		}
		return removeLocal(filepath.Join(e.localStore, filepath.FromSlash(img.Path())))
	})
	if err != nil {
		return stats, fmt.Errorf("delete raw images: %w", err)
	}
	e.log.Info("deleted raw images from object store", zap.Int("count", stats.RawImages))

	err = e.Colorgrams(ctx, func(cg domain.Colorgram) error {
		stats.Colorgrams++
		if e.dryRun {
			return nil
		}
		if err := e.objects.Delete(ctx, e.bucket, cg.Path()); err != nil {
			return err
		}
		return removeLocal(filepath.Join(e.localStore, filepath.FromSlash(cg.Path())))
	})
	if err != nil {
		return stats, fmt.Errorf("delete colorgrams: %w", err)
	}
	e.log.Info("deleted colorgrams from object store", zap.Int("count", stats.Colorgrams))

	if e.dryRun {
		stats.Documents = int64(stats.RawImages + stats.Colorgrams)
		e.log.Info("would delete documents", zap.Int64("count", stats.Documents))
		return stats, nil
	}
	for _, index := range []string{domain.RawImagesIndex, domain.ColorgramsIndex} {
		deleted, err := e.docs.DeleteByQuery(ctx, index, e.filter())
		if err != nil {
			return stats, fmt.Errorf("delete documents from %s: %w", index, err)
		}
		stats.Documents += deleted
	}
	e.log.Info("deleted documents", zap.Int64("count", stats.Documents))
	return stats, nil
}

func removeLocal(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
