// Package main - Entry point for the reference price API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"medicare-refprice/api"
	"medicare-refprice/internal/app"
	"medicare-refprice/internal/config"
	"medicare-refprice/internal/logging"
)

const version = "0.1.0"

func main() {
	cfgPath := flag.String("config", "refprice.json", "Config file")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logging.Named("app"))
	if err != nil {
		logging.Fatal("failed to build engine", zap.Error(err))
	}
	defer a.Close()

	logging.Info("starting reference price server",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend),
	)
	server := api.NewServer(a.Engine, a.Metrics, version, logging.Named("api"))
	if err := server.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		logging.Error("server stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
