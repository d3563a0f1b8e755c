// Package cmd - serve command
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"medicare-refprice/api"
	"medicare-refprice/internal/app"
	"medicare-refprice/internal/config"
	"medicare-refprice/internal/logging"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve POST /v1/resolve, GET /v1/geo, /health, /version and /metrics.

The process drains in-flight requests on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	a, err := app.Build(ctx, cfg, logging.Named("app"))
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(a.Engine, a.Metrics, Version, logging.Named("api"))
	return server.ListenAndServe(ctx, addr)
}
