package vectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

const (
	artifactPNG   = "colorgram.png"
	artifactDists = "distributions.json"
)

// DockerProducer runs a containerized color summarizer over a group
// folder. The container gets the images read-only at /images, writes
// colorgram.png and distributions.json to /out, and exits zero.
type DockerProducer struct {
	image string
	log   *zap.Logger
}

func NewDockerProducer(image string, log *zap.Logger) *DockerProducer {
	return &DockerProducer{image: image, log: log}
}

func (p *DockerProducer) Vectorize(ctx context.Context, dir string) (Artifact, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Artifact{}, fmt.Errorf("resolve group folder %s: %w", dir, err)
	}
	outDir, err := os.MkdirTemp("", "colorsweep-vector-")
	if err != nil {
		return Artifact{}, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		"run", "--rm",
		"--user", "1000:1000",
		"-v", absDir + ":/images:ro",
		"-v", outDir + ":/out",
		p.image,
	}
	p.log.Debug("dispatching vectorizer", zap.String("dir", dir), zap.String("image", p.image))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Artifact{}, ctx.Err()
		}
		return Artifact{}, fmt.Errorf("vectorizer %s on %s: %w: %s",
			p.image, dir, err, strings.TrimSpace(stderr.String()))
	}

	return readArtifact(outDir)
}

// readArtifact loads what the vectorizer left behind.
func readArtifact(outDir string) (Artifact, error) {
	png, err := os.ReadFile(filepath.Join(outDir, artifactPNG))
	if err != nil {
		return Artifact{}, fmt.Errorf("read %s: %w", artifactPNG, err)
	}
	raw, err := os.ReadFile(filepath.Join(outDir, artifactDists))
	if err != nil {
		return Artifact{}, fmt.Errorf("read %s: %w", artifactDists, err)
	}

	var dists struct {
		RGBDist       domain.Distribution `json:"rgb_dist"`
		RGBDistStd    domain.Distribution `json:"rgb_dist_std"`
		JzAzBzDist    domain.Distribution `json:"jzazbz_dist"`
		JzAzBzDistStd domain.Distribution `json:"jzazbz_dist_std"`
	}
	if err := json.Unmarshal(raw, &dists); err != nil {
		return Artifact{}, fmt.Errorf("parse %s: %w", artifactDists, err)
	}

	return Artifact{
		PNG:           png,
		RGBDist:       dists.RGBDist,
		RGBDistStd:    dists.RGBDistStd,
		JzAzBzDist:    dists.JzAzBzDist,
		JzAzBzDistStd: dists.JzAzBzDistStd,
	}, nil
}
