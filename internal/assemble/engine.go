// Package assemble builds the per-dimension-combination downloads tree
// the colorgram producer consumes, reconciling the document store, the
// local cache, and the object store.
package assemble

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"colorsweep/internal/dimensions"
	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
	"colorsweep/internal/metrics"
)

// Request describes one assembly run.
type Request struct {
	TrialIDs        []string
	ExperimentName  string
	Dimensions      []string
	DryRun          bool
	ForceRemotePull bool
}

// Engine assembles a downloads directory, one subdirectory per
// dimension-combination slug, each populated with the images belonging
// to that combination.
type Engine struct {
	docs       DocumentSource
	objects    ObjectFetcher
	bucket     string
	localStore string
	confirm    ConfirmFunc
	log        *zap.Logger
}

// New creates an assembly engine. confirm decides whether pre-existing
// downloads are cleared; pass NoConfirm to waive prompting.
func New(docs DocumentSource, objects ObjectFetcher, bucket, localStore string, confirm ConfirmFunc, log *zap.Logger) *Engine {
	if confirm == nil {
		confirm = NoConfirm
	}
	return &Engine{
		docs:       docs,
		objects:    objects,
		bucket:     bucket,
		localStore: localStore,
		confirm:    confirm,
		log:        log,
	}
}

// Assemble runs the full assembly and returns the downloads root. In
// dry-run mode nothing touches disk and the returned path is empty;
// callers must check the flag before using the result.
func (e *Engine) Assemble(ctx context.Context, req Request) (string, error) {
	sharedFilter := docstore.Terms("trial_id", req.TrialIDs...)

	// 1. observed values for every requested dimension; an empty
	// dimension cannot partition anything and is fatal.
	fieldValues := make(map[string][]string, len(req.Dimensions))
	var empty []string
	for _, field := range req.Dimensions {
		values, err := e.docs.FieldValues(ctx, domain.RawImagesIndex, field, []docstore.Clause{sharedFilter})
		if err != nil {
			return "", fmt.Errorf("field values for %q: %w", field, err)
		}
		if len(values) == 0 {
			empty = append(empty, field)
			continue
		}
		fieldValues[field] = values
	}
	if len(empty) > 0 {
		return "", &domain.EmptyDimensionError{
			Fields: empty,
			Filter: fmt.Sprintf("trial_id in %v", req.TrialIDs),
		}
	}

	// 2. every dimension combination
	combos, err := dimensions.Combine(fieldValues)
	if err != nil {
		return "", err
	}

	// 3. expected image paths per combination
	slugs := make([]string, 0, len(combos))
	groups := make(map[string][]string, len(combos))
	total := 0
	for _, combo := range combos {
		slug := combo.Slug().String()
		filter := append(docstore.TagClauses(combo.Terms), sharedFilter)
		err := e.docs.Scan(ctx, domain.RawImagesIndex, filter, func(source json.RawMessage) error {
			var img domain.RawImage
			if err := json.Unmarshal(source, &img); err != nil {
				return fmt.Errorf("decode raw image: %w", err)
			}
			if img.TrialID == "" || img.ImageID == "" {
				e.log.Warn("raw image document missing path fields, skipping",
					zap.String("slug", slug))
				return nil
			}
			groups[slug] = append(groups[slug], img.Path())
			total++
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("scan %s: %w", slug, err)
		}
		slugs = append(slugs, slug)
	}

	// 4. nothing matched at all: likely an un-indexed trial
	if total == 0 {
		return "", fmt.Errorf("0 images available for trials %v; has this trial been indexed? %w",
			req.TrialIDs, domain.ErrNoImages)
	}

	e.log.Info("image paths gathered",
		zap.Int("images", total), zap.Int("groups", len(slugs)))

	if req.DryRun {
		return "", nil
	}

	downloadsPath := filepath.Join(e.localStore, req.ExperimentName, "downloads")
	if err := e.clearExisting(downloadsPath); err != nil {
		return "", err
	}

	// 6. populate each group from the local cache, falling back to the
	// object store; fetched objects are cached for future runs.
	assembled := 0
	for _, slug := range slugs {
		groupDir := filepath.Join(downloadsPath, slug)
		for _, relPath := range groups[slug] {
			if err := e.placeImage(ctx, relPath, groupDir, req.ForceRemotePull); err != nil {
				return "", err
			}
			assembled++
			metrics.ImagesAssembled.Inc()
		}
	}

	e.log.Info("assembly complete",
		zap.Int("images", assembled), zap.String("path", downloadsPath))
	return downloadsPath, nil
}

// clearExisting applies the pre-run clearing semantics: when the target
// already has content, the injected confirmation decides whether to clear
// it; declining proceeds with mixed data, which is an explicit choice.
func (e *Engine) clearExisting(downloadsPath string) error {
	entries, err := os.ReadDir(downloadsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(downloadsPath, 0o755)
		}
		return fmt.Errorf("inspect %s: %w", downloadsPath, err)
	}
	if len(entries) > 0 {
		prompt := fmt.Sprintf("%d items found at %s, clear for this new run? (y/n) ", len(entries), downloadsPath)
		if e.confirm(prompt) {
			e.log.Debug("clearing downloads path for this run")
			if err := os.RemoveAll(downloadsPath); err != nil {
				return fmt.Errorf("clear %s: %w", downloadsPath, err)
			}
		} else {
			e.log.Warn("not clearing, new results will be mixed with existing data",
				zap.String("path", downloadsPath))
		}
	}
	return os.MkdirAll(downloadsPath, 0o755)
}

// placeImage copies one expected image into the group directory, via the
// local cache when possible. A fetch failure propagates: a group with a
// missing image is not silently short.
func (e *Engine) placeImage(ctx context.Context, relPath, groupDir string, forceRemote bool) error {
	cachePath := filepath.Join(e.localStore, filepath.FromSlash(relPath))
	targetPath := filepath.Join(groupDir, filepath.Base(relPath))
	if err := os.MkdirAll(groupDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", groupDir, err)
	}

	if !forceRemote {
		if body, err := os.ReadFile(cachePath); err == nil {
			return writeFile(targetPath, body)
		}
	}

	body, err := e.objects.Get(ctx, e.bucket, relPath)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", relPath, err)
	}
	metrics.ObjectsFetched.Inc()
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	if err := writeFile(cachePath, body); err != nil {
		return err
	}
	return writeFile(targetPath, body)
}

func writeFile(path string, body []byte) error {
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// TerminalConfirm prompts on stdin and accepts y/yes.
func TerminalConfirm(prompt string) bool {
	fmt.Print(prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
