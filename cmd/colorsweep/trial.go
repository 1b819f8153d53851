package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/trial"
	"colorsweep/internal/vectors"
)

var (
	trialExperiment  string
	trialID          string
	trialHostname    string
	trialBatchSlice  string
	trialMaxImages   int
	trialOverwrite   bool
	trialSkipVectors bool
	trialRunSearched bool
)

var trialCmd = &cobra.Command{
	Use:   "trial",
	Short: "Run search trials for an experiment's terms on this host",
	Long: `Reads the experiment's terms file, dispatches one containerized
search per term, indexes the resulting manifests and (unless disabled)
produces a colorgram per query.

Terms already searched by this host under the same trial id are skipped
unless --rerun-searched is set. --batch-slice "N of M" restricts the run
to the Nth of M contiguous term chunks for fleet splitting.`,
	RunE: runTrial,
}

func init() {
	trialCmd.Flags().StringVar(&trialExperiment, "experiment", "", "experiment name (required)")
	trialCmd.Flags().StringVar(&trialID, "trial-id", "", "trial id (default: generated UUID)")
	trialCmd.Flags().StringVar(&trialHostname, "hostname", "", "hostname override (default: os hostname)")
	trialCmd.Flags().StringVar(&trialBatchSlice, "batch-slice", "", `run only a slice of the terms, e.g. "0 of 4"`)
	trialCmd.Flags().IntVar(&trialMaxImages, "max-images", 0, "images per query (default from config)")
	trialCmd.Flags().BoolVar(&trialOverwrite, "overwrite", false, "re-index raw images that already exist")
	trialCmd.Flags().BoolVar(&trialSkipVectors, "skip-vectors", false, "skip per-query colorgram production")
	trialCmd.Flags().BoolVar(&trialRunSearched, "rerun-searched", false, "run terms this host already searched")
	_ = trialCmd.MarkFlagRequired("experiment")
	rootCmd.AddCommand(trialCmd)
}

func runTrial(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	terms, err := trial.LoadTerms(trial.TermsPath(cfg.Trial.TermsDir, trialExperiment))
	if err != nil {
		return fmt.Errorf("load terms for %q: %w", trialExperiment, err)
	}

	gw, err := newDocstore(ctx)
	if err != nil {
		return err
	}
	objects, err := newObjstore()
	if err != nil {
		return err
	}

	hostname := trialHostname
	if hostname == "" {
		hostname, err = os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
	}
	id := trialID
	if id == "" {
		id = uuid.NewString()
	}
	maxImages := trialMaxImages
	if maxImages <= 0 {
		maxImages = cfg.Trial.MaxImages
	}

	logger.Info("trial configured",
		zap.String("experiment", trialExperiment),
		zap.String("trial_id", id),
		zap.String("hostname", hostname),
		zap.Int("terms", len(terms)),
	)

	runnerCfg := trial.Config{
		ExperimentName: trialExperiment,
		TrialID:        id,
		Hostname:       hostname,
		LocalStore:     cfg.LocalStore.Path,
		Bucket:         cfg.S3.Bucket,

		RunnerImage:  cfg.Trial.RunnerImage,
		Endpoint:     cfg.Trial.Endpoint,
		MaxImages:    maxImages,
		QueryTimeout: time.Duration(cfg.Trial.QueryTimeoutSec) * time.Second,
		Attempts:     cfg.Trial.Attempts,

		RunnerEnv: map[string]string{
			"AWS_ACCESS_KEY_ID":     cfg.S3.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY": cfg.S3.SecretAccessKey,
			"AWS_REGION":            cfg.S3.Region,
			"AWS_BUCKET":            cfg.S3.Bucket,
		},

		BatchSlice:          trialBatchSlice,
		SkipAlreadySearched: !trialRunSearched,
		SkipVectors:         trialSkipVectors,
		DryRun:              dryRun,
		Overwrite:           trialOverwrite,
	}

	runner := trial.New(gw, objects, trial.NewExecRunner(logger), runnerCfg, logger)
	if !trialSkipVectors {
		producer := vectors.NewDockerProducer(cfg.Trial.VectorizerImage, logger)
		runner = runner.WithCollector(func(ctx context.Context, downloadsPath string) ([]vectors.Result, error) {
			return vectors.Collect(ctx, downloadsPath, producer, logger)
		})
	}

	return runner.Run(ctx, terms)
}
