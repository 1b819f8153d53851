package vectors

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, artifactPNG), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	dists := `{
		"rgb_dist": [0.1, 0.2],
		"rgb_dist_std": [0.01, null],
		"jzazbz_dist": [0.3],
		"jzazbz_dist_std": [0.02]
	}`
	if err := os.WriteFile(filepath.Join(dir, artifactDists), []byte(dists), 0o644); err != nil {
		t.Fatal(err)
	}

	artifact, err := readArtifact(dir)
	if err != nil {
		t.Fatalf("readArtifact: %v", err)
	}
	if string(artifact.PNG) != "png-bytes" {
		t.Errorf("unexpected png bytes: %q", artifact.PNG)
	}
	if len(artifact.RGBDist) != 2 || artifact.RGBDist[1] != 0.2 {
		t.Errorf("unexpected rgb_dist: %v", artifact.RGBDist)
	}
	if !math.IsNaN(artifact.RGBDistStd[1]) {
		t.Errorf("expected null to decode as NaN, got %v", artifact.RGBDistStd[1])
	}
	if len(artifact.JzAzBzDist) != 1 || artifact.JzAzBzDist[0] != 0.3 {
		t.Errorf("unexpected jzazbz_dist: %v", artifact.JzAzBzDist)
	}
}

func TestReadArtifactMissingPNG(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, artifactDists), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := readArtifact(dir); err == nil {
		t.Fatal("expected error for missing colorgram.png")
	}
}
