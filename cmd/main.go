package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"tunegrab/internal/services"
	"tunegrab/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var catalog *services.Catalog
	if config.Catalog.ClientID != "" && config.Catalog.ClientSecret != "" {
		if c, err := services.NewCatalog(ctx, config.Catalog); err == nil {
			catalog = c
		}
	}

	opts := RunnerOpts{
		Config: config,
		Logger: logger,
	}
	if catalog != nil {
		opts.Catalog = catalog
	}
	runner := NewRunner(opts)

	app := &cli.Command{
		Name:     "tunegrab",
		Usage:    "Download tracks, albums, and playlists to a local library",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
