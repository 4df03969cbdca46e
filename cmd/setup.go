package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/dmsa/internal/session"
	"github.com/desertthunder/dmsa/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates the local database and applies pending migrations.
//
// A missing config file is written from the defaults first so later commands find the same database.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		}
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}
	if err := config.ApplyEnv(); err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}

// SetupConfig writes the default configuration file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Configuration written to %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set services.user_api_base_url and services.media_api_base_url\n")
	r.writePlain("2. Run 'dmsa setup database' to create local storage\n")
	return nil
}

// SetupToken stores a bearer token taken from a request copied out of the browser.
//
// Accepts a cURL command and reads the Authorization header, or the token cookie when the header is absent.
func (r *Runner) SetupToken(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	token, err := curlHeaders.BearerToken(cmd.String("cookie"))
	if err != nil {
		return err
	}

	if err := r.session.SetToken(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	userID := r.session.UserID()
	if userID == "" {
		r.logger.Warn("imported token has no readable subject")
		userID = "Not found in token"
	}

	r.writePlain("✓ Token imported\n")
	r.writePlain("User ID: %s\n", userID)
	if claims, ok := session.DecodeClaims(token); ok && claims.Expired(timeNow()) {
		r.writePlain("⚠ Token expired at %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
