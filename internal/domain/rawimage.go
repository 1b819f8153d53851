package domain

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Index names in the document store.
const (
	RawImagesIndex  = "raw-images"
	ColorgramsIndex = "colorgrams"
	HitsIndex       = "mturk-hits"
)

// Identity field sets used for idempotent indexing.
var (
	RawImageIdentity  = []string{"trial_id", "hostname", "ran_at"}
	ColorgramIdentity = []string{"experiment_name", "downloads", "s3_key"}
	HitIdentity       = []string{"internal_hit_id"}
)

// RawImage is one observed image from one query execution. Well-known
// fields are typed; per-query configuration dimensions (domain, eng_ref,
// ...) land in Extra and are flattened into the top level on the wire.
type RawImage struct {
	TrialID        string
	Hostname       string
	Query          string
	TrialTimestamp string
	RanAt          string
	Region         string
	ImageID        string
	ImageURL       string
	ExperimentName string
	Extra          map[string]string
}

// Path is the expected object-store key and cache-relative location of the
// image bytes: data/{trial_id}/{hostname}/{query}/{trial_timestamp}/images/{image_id}.jpg
// with spaces in the query replaced by underscores.
func (r RawImage) Path() string {
	return path.Join(
		"data",
		r.TrialID,
		r.Hostname,
		strings.ReplaceAll(r.Query, " ", "_"),
		r.TrialTimestamp,
		"images",
		r.ImageID+".jpg",
	)
}

// rawImageFields are the well-known wire fields; everything else unmarshals
// into Extra.
var rawImageFields = map[string]bool{
	"trial_id":        true,
	"hostname":        true,
	"query":           true,
	"trial_timestamp": true,
	"ran_at":          true,
	"region":          true,
	"image_id":        true,
	"image_url":       true,
	"experiment_name": true,
}

// MarshalJSON flattens Extra into the top-level object.
func (r RawImage) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields())
}

// Fields returns the flat wire representation of the document.
func (r RawImage) Fields() map[string]any {
	m := make(map[string]any, 9+len(r.Extra))
	for k, v := range r.Extra {
		if !rawImageFields[k] {
			m[k] = v
		}
	}
	m["trial_id"] = r.TrialID
	m["hostname"] = r.Hostname
	m["query"] = r.Query
	m["trial_timestamp"] = r.TrialTimestamp
	m["ran_at"] = r.RanAt
	m["image_id"] = r.ImageID
	m["image_url"] = r.ImageURL
	if r.Region != "" {
		m["region"] = r.Region
	}
	if r.ExperimentName != "" {
		m["experiment_name"] = r.ExperimentName
	}
	return m
}

// UnmarshalJSON pulls well-known fields out of the flat object and keeps
// the remaining string-valued fields in Extra.
func (r *RawImage) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshal raw image: %w", err)
	}
	str := func(key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	r.TrialID = str("trial_id")
	r.Hostname = str("hostname")
	r.Query = str("query")
	r.TrialTimestamp = str("trial_timestamp")
	r.RanAt = str("ran_at")
	r.Region = str("region")
	r.ImageID = str("image_id")
	r.ImageURL = str("image_url")
	r.ExperimentName = str("experiment_name")
	if r.TrialTimestamp == "" {
		r.TrialTimestamp = r.RanAt
	}
	for k, v := range m {
		if rawImageFields[k] {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]string)
		}
		r.Extra[k] = s
	}
	return nil
}
