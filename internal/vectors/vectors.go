// Package vectors turns an assembled downloads tree into colorgram
// documents. The actual color summarization is a pluggable Producer; this
// package owns the folder walk, slug metadata extraction, and document
// shaping around it.
package vectors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

// Artifact is one produced color summary: the rendered PNG plus the four
// distribution vectors.
type Artifact struct {
	PNG           []byte
	RGBDist       domain.Distribution
	RGBDistStd    domain.Distribution
	JzAzBzDist    domain.Distribution
	JzAzBzDistStd domain.Distribution
}

// Producer computes the color summary for one folder of images.
type Producer interface {
	Vectorize(ctx context.Context, dir string) (Artifact, error)
}

// Result pairs a colorgram document with its artifact bytes. The caller
// sets ExperimentName and decides where both end up.
type Result struct {
	Doc domain.Colorgram
	PNG []byte
}

// Collect walks the slug-named group folders under downloadsPath and
// produces one Result per folder. An empty group folder is fatal. A folder
// whose name fails to parse as dimension tags is logged and skipped, the
// one non-fatal integrity case in the pipeline.
func Collect(ctx context.Context, downloadsPath string, producer Producer, log *zap.Logger) ([]Result, error) {
	entries, err := os.ReadDir(downloadsPath)
	if err != nil {
		return nil, fmt.Errorf("read downloads path %s: %w", downloadsPath, err)
	}

	var results []Result
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(downloadsPath, entry.Name())
		images, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("read group folder %s: %w", folder, err)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("no downloaded images available at %s: %w", folder, domain.ErrEmptyGroup)
		}

		slug, err := domain.ParseSlug(entry.Name())
		if err != nil {
			log.Error("could not load metadata from group folder name, skipping",
				zap.String("folder", entry.Name()), zap.Error(err))
			continue
		}

		artifact, err := producer.Vectorize(ctx, folder)
		if err != nil {
			return nil, fmt.Errorf("vectorize %s: %w", folder, err)
		}

		dims := make(map[string]string, len(slug))
		for _, tag := range slug {
			dims[tag.Field] = tag.Value
		}
		downloads := make([]string, 0, len(images))
		for _, img := range images {
			downloads = append(downloads, strings.TrimSuffix(img.Name(), filepath.Ext(img.Name())))
		}

		results = append(results, Result{
			Doc: domain.Colorgram{
				S3Key:         domain.TagsHash(slug.Tags()),
				Downloads:     downloads,
				Dims:          dims,
				RGBDist:       artifact.RGBDist,
				RGBDistStd:    artifact.RGBDistStd,
				JzAzBzDist:    artifact.JzAzBzDist,
				JzAzBzDistStd: artifact.JzAzBzDistStd,
			},
			PNG: artifact.PNG,
		})
	}
	return results, nil
}
