package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// TagsHash derives a stable content key from a set of tag strings.
// The input order does not matter: tags are sorted before hashing, so any
// call site building the same set of field=value tags gets the same key.
// The hex digest doubles as the object-store key for the group's artifact.
func TagsHash(tags []string) string {
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)

	h := sha256.New()
	for _, tag := range sorted {
		h.Write([]byte(tag))
	}
	return hex.EncodeToString(h.Sum(nil))
}
