package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"colorsweep/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve experiment results over HTTP and websocket",
	Long: `Starts the companion web service: experiment listing, terms
configs, the websocket /data API for colorgram retrieval, health and
prometheus metrics endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	catalog, gw, err := newCatalog(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:            fmt.Sprintf(":%d", cfg.Server.Port),
		Users:           cfg.Server.Users,
		TermsDir:        cfg.Trial.TermsDir,
		ReadTimeout:     time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:    time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownSec) * time.Second,
	}, catalog, gw, logger)

	return srv.ListenAndServe(ctx)
}
