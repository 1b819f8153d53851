package trial

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"colorsweep/internal/domain"
)

// ManifestPath is where the query-runner subprocess must leave its
// manifest after a successful run.
func ManifestPath(localStore, trialID, hostname, trialTimestamp string) string {
	return filepath.Join(localStore, trialID, hostname, trialTimestamp, "manifest.json")
}

// ReadManifest loads the raw-image records the subprocess produced. A
// missing file after a zero exit is an integrity failure, not a soft skip.
func ReadManifest(path string) ([]domain.RawImage, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("the trial run should have created a manifest at %s, but it did not: %w",
				path, domain.ErrManifestMissing)
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var images []domain.RawImage
	if err := json.Unmarshal(body, &images); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return images, nil
}
