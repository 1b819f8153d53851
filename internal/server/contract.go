package server

import (
	"context"

	"colorsweep/internal/experiment"
)

// ExperimentSource serves the experiment catalog: the names present in
// the colorgrams index and term lookups within one experiment.
type ExperimentSource interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, experimentName, word string) ([]experiment.GetResult, error)
}

// HealthChecker reports whether the backing document store is usable.
type HealthChecker interface {
	CheckCluster(ctx context.Context) error
}
