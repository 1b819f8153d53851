// Package labeling shapes crowd-labeling HIT documents and indexes them
// idempotently. HIT lifecycle management beyond indexing lives outside
// this pipeline.
package labeling

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"colorsweep/internal/docstore"
	"colorsweep/internal/domain"
)

// LayoutParameter is one template parameter of a HIT layout.
type LayoutParameter struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

// HitDocument is one labeling task to be indexed. Metadata carries the
// shared trial fields the task inherits.
type HitDocument struct {
	FaceID           string            `json:"face_id"`
	HitTypeID        string            `json:"hit_type_id"`
	HitLayoutID      string            `json:"hit_layout_id"`
	LayoutParameters []LayoutParameter `json:"layout_parameters"`
	HitState         string            `json:"hit_state,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// InternalHitID derives the stable identity of a HIT from everything that
// defines it: the face, the HIT type and layout, and the canonical JSON
// of its layout parameters. Re-running a trial reproduces the same id, so
// indexing stays idempotent.
func InternalHitID(faceID, hitTypeID, hitLayoutID string, params []LayoutParameter) (string, error) {
	canonical, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode layout parameters: %w", err)
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		faceID, hitTypeID, hitLayoutID, string(canonical),
	}, "-")))
	return hex.EncodeToString(sum[:]), nil
}

// Fields returns the flat wire representation of the document.
func (h HitDocument) Fields() (map[string]any, error) {
	id, err := InternalHitID(h.FaceID, h.HitTypeID, h.HitLayoutID, h.LayoutParameters)
	if err != nil {
		return nil, err
	}
	state := h.HitState
	if state == "" {
		state = "indexed"
	}
	m := make(map[string]any, 6+len(h.Metadata))
	for k, v := range h.Metadata {
		m[k] = v
	}
	m["face_id"] = h.FaceID
	m["hit_state"] = state
	m["internal_hit_id"] = id
	m["hit_type_id"] = h.HitTypeID
	m["hit_layout_id"] = h.HitLayoutID
	m["layout_parameters"] = h.LayoutParameters
	return m, nil
}

// DocumentStore is the indexing slice of the document-store gateway.
type DocumentStore interface {
	BulkIndex(ctx context.Context, index string, docs []map[string]any, identityFields []string, overwrite bool) (docstore.IndexStats, error)
}

// IndexHits indexes the given HITs, skipping any whose internal id is
// already present.
func IndexHits(ctx context.Context, store DocumentStore, hits []HitDocument) (docstore.IndexStats, error) {
	if len(hits) == 0 {
		return docstore.IndexStats{}, nil
	}
	docs := make([]map[string]any, len(hits))
	for i, hit := range hits {
		fields, err := hit.Fields()
		if err != nil {
			return docstore.IndexStats{}, err
		}
		docs[i] = fields
	}
	return store.BulkIndex(ctx, domain.HitsIndex, docs, domain.HitIdentity, false)
}
