package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/muzik-tools/bandsync/internal/services"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	godotenv.Load()
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(shared.ConfigPath()); err == nil {
		if loadedConfig, err := shared.LoadConfig(shared.ConfigPath()); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	client := services.NewClient(services.ClientOpts{
		MaxRetries:      config.Sync.MaxAttempts,
		RequestInterval: time.Duration(config.Sync.RequestIntervalMS) * time.Millisecond,
		Logger:          logger,
	})
	bandcamp := services.NewBandcampService(client, "", logger)
	auth := services.NewCookieAuthenticator(
		config.Credentials.Bandcamp.CookiesPath,
		config.Credentials.Bandcamp.Username,
		bandcamp,
		logger,
	)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		Auth:       auth,
		Collection: bandcamp,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:     "bandsync",
		Usage:    "Sync your Bandcamp collection to a local library",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	// cli.Exit errors carry their own code and are handled by app.Run.
	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
