package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/labeling"
)

var labelsFile string

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Index crowd-labeling HIT records",
	Long: `Reads a JSON array of HIT records and indexes them idempotently;
records that share face id, hit type, layout and parameters collapse to
one document.`,
	RunE: runLabels,
}

func init() {
	labelsCmd.Flags().StringVar(&labelsFile, "file", "", "JSON file of HIT records (required)")
	_ = labelsCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(labelsCmd)
}

func runLabels(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	raw, err := os.ReadFile(labelsFile)
	if err != nil {
		return fmt.Errorf("read hits file: %w", err)
	}
	var hits []labeling.HitDocument
	if err := json.Unmarshal(raw, &hits); err != nil {
		return fmt.Errorf("parse hits file: %w", err)
	}

	if dryRun {
		logger.Info("DRY RUN: would index hits", zap.Int("hits", len(hits)))
		return nil
	}

	gw, err := newDocstore(ctx)
	if err != nil {
		return err
	}
	stats, err := labeling.IndexHits(ctx, gw, hits)
	if err != nil {
		return fmt.Errorf("index hits: %w", err)
	}
	logger.Info("hits indexed",
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped))
	return nil
}
