package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/docstore"
	"colorsweep/internal/experiment"
)

var (
	experimentName      string
	experimentRawImages bool
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Inspect, pull or delete an experiment's stored results",
}

var experimentLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List experiments known to the colorgrams index",
	RunE:  runExperimentLs,
}

var experimentPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Sync an experiment's artifacts from the object store to the local cache",
	RunE:  runExperimentPull,
}

var experimentDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete an experiment's objects, local files and documents",
	RunE:  runExperimentDelete,
}

func init() {
	experimentPullCmd.Flags().StringVar(&experimentName, "experiment", "", "experiment name (required)")
	experimentPullCmd.Flags().BoolVar(&experimentRawImages, "raw-images", false, "also pull the raw trial images")
	_ = experimentPullCmd.MarkFlagRequired("experiment")

	experimentDeleteCmd.Flags().StringVar(&experimentName, "experiment", "", "experiment name (required)")
	_ = experimentDeleteCmd.MarkFlagRequired("experiment")

	experimentCmd.AddCommand(experimentLsCmd, experimentPullCmd, experimentDeleteCmd)
	rootCmd.AddCommand(experimentCmd)
}

// newCatalog wires the experiment catalog; it also returns the gateway so
// callers can reuse the connection.
func newCatalog(ctx context.Context) (*experiment.Catalog, *docstore.Gateway, error) {
	gw, err := newDocstore(ctx)
	if err != nil {
		return nil, nil, err
	}
	objects, err := newObjstore()
	if err != nil {
		return nil, nil, err
	}
	pagers := func(index, aggName string, body map[string]any) experiment.BucketPager {
		return gw.NewCompositePager(index, aggName, body)
	}
	return experiment.NewCatalog(pagers, gw, objects, cfg.S3.Bucket, cfg.LocalStore.Path, logger), gw, nil
}

func runExperimentLs(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, _, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	names, err := catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list experiments: %w", err)
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

func runExperimentPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, _, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	stats, err := catalog.Open(experimentName, dryRun).Pull(ctx, experimentRawImages)
	if err != nil {
		return fmt.Errorf("pull %q: %w", experimentName, err)
	}
	logger.Info("pull complete",
		zap.Int("colorgrams", stats.Colorgrams),
		zap.Int("raw_images", stats.RawImages))
	return nil
}

func runExperimentDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, _, err := newCatalog(ctx)
	if err != nil {
		return err
	}
	stats, err := catalog.Open(experimentName, dryRun).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete %q: %w", experimentName, err)
	}
	logger.Info("delete complete",
		zap.Int("raw_images", stats.RawImages),
		zap.Int("colorgrams", stats.Colorgrams),
		zap.Int64("documents", stats.Documents))
	return nil
}
