// Command colorsweep drives the distributed image-gathering pipeline:
// dispatching search trials, assembling downloaded images by dimension,
// producing colorgrams, and serving results over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"colorsweep/internal/config"
	"colorsweep/internal/docstore"
	logpkg "colorsweep/internal/logger"
	"colorsweep/internal/objstore"
	"colorsweep/internal/version"
)

var (
	// Persistent flags
	dryRun bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "colorsweep",
	Short: "colorsweep - distributed image gathering and color analysis",
	Long: `colorsweep runs search-engine image trials across many hosts, indexes
the downloaded images, assembles them into dimension groups, and computes
colorgram summaries per group.

Configuration is read from config/<ENV>.yaml (ENV defaults to "local");
a .env file in the working directory is loaded first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env feeds ${VAR} expansion in the YAML config
		_ = godotenv.Load()

		env := config.GetEnv()
		var err error
		cfg, err = config.Load(env)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}

		logger.Info("colorsweep starting",
			zap.String("version", version.Version),
			zap.String("commit", version.Commit),
			zap.String("env", env),
			zap.String("command", cmd.Name()),
			zap.Bool("dry_run", dryRun),
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false,
		"log what would happen without dispatching, writing or deleting anything")

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newDocstore connects to the document store and verifies cluster health.
func newDocstore(ctx context.Context) (*docstore.Gateway, error) {
	var caCert []byte
	if cfg.Elasticsearch.CACert != "" {
		var err error
		caCert, err = os.ReadFile(cfg.Elasticsearch.CACert)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
	}

	gw, err := docstore.New(docstore.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
		CACert:    caCert,
		AggSize:   cfg.Elasticsearch.AggSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create document store gateway: %w", err)
	}
	if err := gw.CheckCluster(ctx); err != nil {
		return nil, fmt.Errorf("document store unavailable: %w", err)
	}
	return gw, nil
}

func newObjstore() (*objstore.Store, error) {
	store, err := objstore.New(objstore.Config{
		Region:          cfg.S3.Region,
		EndpointURL:     cfg.S3.EndpointURL,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create object store gateway: %w", err)
	}
	return store, nil
}
