package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImages signals that no raw images matched an assembly query.
	ErrNoImages = errors.New("no images in document store")
	// ErrNoQueries signals that no dimension combinations could be generated.
	ErrNoQueries = errors.New("no queries gathered")
	// ErrEmptyDimension signals a requested dimension field with zero observed values.
	ErrEmptyDimension = errors.New("empty dimension")
	// ErrMalformedTag signals a slug part that does not split into field and value.
	ErrMalformedTag = errors.New("malformed tag")
	// ErrEmptyGroup signals a dimension-combination folder with no images in it.
	ErrEmptyGroup = errors.New("no downloads in group")
	// ErrObjectNotFound signals a missing object-store key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrManifestMissing signals an absent manifest after a successful query run.
	ErrManifestMissing = errors.New("manifest missing")
	// ErrClusterRed signals an unhealthy document store at startup.
	ErrClusterRed = errors.New("cluster status is red")
	// ErrNoAfterKey signals a composite aggregation response without a continuation key.
	ErrNoAfterKey = errors.New("no composite aggregation continuation key")
	// ErrInvalidSlice signals an unparseable or impossible batch slice spec.
	ErrInvalidSlice = errors.New("invalid batch slice")
	// ErrMissingCredentials signals absent credentials for a remote endpoint.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrColorgramNotFound signals that no colorgram matched a lookup.
	ErrColorgramNotFound = errors.New("colorgram not found")
)

// EmptyDimensionError wraps ErrEmptyDimension with the offending fields
// and the filter that produced no values for them.
type EmptyDimensionError struct {
	Fields []string
	Filter string
}

func (e *EmptyDimensionError) Error() string {
	return fmt.Sprintf("no values for fields %v matching filter %s", e.Fields, e.Filter)
}

func (e *EmptyDimensionError) Unwrap() error { return ErrEmptyDimension }
