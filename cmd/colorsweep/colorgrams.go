package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
	"colorsweep/internal/vectors"
)

var (
	colorgramsExperiment string
	colorgramsDownloads  string
	colorgramsOverwrite  bool
)

var colorgramsCmd = &cobra.Command{
	Use:   "colorgrams",
	Short: "Produce and index colorgrams from an assembled downloads tree",
	Long: `Runs the vectorizer over every dimension-combination folder of a
previously assembled experiment, uploads each colorgram artifact to the
object store and indexes its document.`,
	RunE: runColorgrams,
}

func init() {
	colorgramsCmd.Flags().StringVar(&colorgramsExperiment, "experiment", "", "experiment name (required)")
	colorgramsCmd.Flags().StringVar(&colorgramsDownloads, "downloads", "", "downloads tree to process (default: {local_data_store}/{experiment}/downloads)")
	colorgramsCmd.Flags().BoolVar(&colorgramsOverwrite, "overwrite", false, "re-index colorgram documents that already exist")
	_ = colorgramsCmd.MarkFlagRequired("experiment")
	rootCmd.AddCommand(colorgramsCmd)
}

func runColorgrams(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	downloads := colorgramsDownloads
	if downloads == "" {
		downloads = filepath.Join(cfg.LocalStore.Path, colorgramsExperiment, "downloads")
	}

	gw, err := newDocstore(ctx)
	if err != nil {
		return err
	}
	objects, err := newObjstore()
	if err != nil {
		return err
	}

	producer := vectors.NewDockerProducer(cfg.Trial.VectorizerImage, logger)
	results, err := vectors.Collect(ctx, downloads, producer, logger)
	if err != nil {
		return fmt.Errorf("collect colorgrams from %s: %w", downloads, err)
	}
	if len(results) == 0 {
		logger.Warn("no group folders found", zap.String("downloads", downloads))
		return nil
	}

	if dryRun {
		logger.Info("DRY RUN: would upload and index colorgrams",
			zap.Int("colorgrams", len(results)))
		return nil
	}

	docs := make([]map[string]any, len(results))
	for i, res := range results {
		res.Doc.ExperimentName = colorgramsExperiment
		if err := objects.Put(ctx, cfg.S3.Bucket, res.Doc.Path(), res.PNG, true); err != nil {
			return fmt.Errorf("upload colorgram %s: %w", res.Doc.S3Key, err)
		}
		docs[i] = res.Doc.Fields()
	}

	stats, err := gw.BulkIndex(ctx, domain.ColorgramsIndex, docs, domain.ColorgramIdentity, colorgramsOverwrite)
	if err != nil {
		return fmt.Errorf("index colorgrams: %w", err)
	}
	logger.Info("colorgrams indexed",
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped))
	return nil
}
