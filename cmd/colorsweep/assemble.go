package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/assemble"
)

var (
	assembleExperiment string
	assembleTrialIDs   []string
	assembleDimensions []string
	assembleForcePull  bool
	assembleNoPrompt   bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble downloaded images into dimension-combination folders",
	Long: `Groups the raw images of the given trials by every combination of the
requested dimension fields and populates one folder per combination under
{local_data_store}/{experiment}/downloads, pulling missing images from the
object store.`,
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().StringVar(&assembleExperiment, "experiment", "", "experiment name (required)")
	assembleCmd.Flags().StringSliceVar(&assembleTrialIDs, "trial-id", nil, "trial ids to assemble (required, repeatable)")
	assembleCmd.Flags().StringSliceVar(&assembleDimensions, "dimension", nil, "dimension fields to group by (required, repeatable)")
	assembleCmd.Flags().BoolVar(&assembleForcePull, "force-remote-pull", false, "fetch every image from the object store even when cached locally")
	assembleCmd.Flags().BoolVar(&assembleNoPrompt, "no-prompt", false, "never prompt; existing downloads are kept and results may mix")
	_ = assembleCmd.MarkFlagRequired("experiment")
	_ = assembleCmd.MarkFlagRequired("trial-id")
	_ = assembleCmd.MarkFlagRequired("dimension")
	rootCmd.AddCommand(assembleCmd)
}

func runAssemble(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	gw, err := newDocstore(ctx)
	if err != nil {
		return err
	}
	objects, err := newObjstore()
	if err != nil {
		return err
	}

	confirm := assemble.TerminalConfirm
	if assembleNoPrompt {
		confirm = assemble.NoConfirm
	}
	engine := assemble.New(gw, objects, cfg.S3.Bucket, cfg.LocalStore.Path, confirm, logger)

	path, err := engine.Assemble(ctx, assemble.Request{
		TrialIDs:        assembleTrialIDs,
		ExperimentName:  assembleExperiment,
		Dimensions:      assembleDimensions,
		DryRun:          dryRun,
		ForceRemotePull: assembleForcePull,
	})
	if err != nil {
		return fmt.Errorf("assemble %q: %w", assembleExperiment, err)
	}
	if path != "" {
		logger.Info("assembly complete", zap.String("downloads", path))
	}
	return nil
}
