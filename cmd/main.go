package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/dmsa/internal/repositories"
	"github.com/desertthunder/dmsa/internal/services"
	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadDotenv(); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	configPath := os.Getenv(shared.EnvConfigPath)
	if configPath == "" {
		configPath = "config.toml"
	}
	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}
	if err := config.ApplyEnv(); err != nil {
		logger.Fatalf("invalid environment: %v", err)
	}

	api, err := services.NewClientFromConfig(config.Services)
	if err != nil {
		logger.Fatalf("invalid service configuration: %v", err)
	}

	var storage *repositories.StorageRepository
	var store session.Store = session.NewMemoryStore("")
	closeDB := func() {}

	if db, err := shared.OpenDatabase(config.Database); err != nil {
		logger.Warn("local storage unavailable, token will not persist", "path", config.Database.Path, "error", err)
	} else {
		closeDB = func() { db.Close() }
		storage = repositories.NewStorageRepository(db)
		store = session.NewDBStore(storage)
	}

	provider, err := session.NewProvider(store)
	if err != nil {
		logger.Warn("failed to read stored token", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:  config,
		API:     api,
		Session: provider,
		Storage: storage,
		Logger:  logger,
	})

	app := &cli.Command{
		Name:     "dmsa",
		Usage:    "Music streaming client: library, playlists and follows from the terminal or the browser",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err = app.Run(context.Background(), os.Args)
	closeDB()

	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}
