package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/aleerpe/internal/shared"
)

// Setup creates the config file when missing, initializes the database and runs migrations, which seed the catalog.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.writePlain("✓ Config file created: %s\n", configPath)
		}
	}

	if err := r.prepare(cmd); err != nil {
		return err
	}
	defer r.Close()

	status, err := shared.Migrations(r.db)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, m := range status {
		r.logger.Debug("migration", "version", m.Version, "name", m.Name, "applied", m.Applied)
	}

	mangas, err := r.mangas.List(nil)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready: %s (%d migrations, %d titles in catalog)\n", r.config.Database.Path, len(status), len(mangas))
	if !r.config.Credentials.Gateway.HasCredentials() {
		r.writePlainln("Next: set credentials.gateway.api_key in %s to enable translation and narration.", configPath)
	}
	return nil
}
