package main

import (
	"fmt"

	"github.com/pesio-ai/be-app-crm/internal/repository"
	"github.com/pesio-ai/be-app-crm/internal/service"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE:  runMigrate,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert every module and action permission",
	RunE:  runSeed,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Info().Msg("Schema migrated")
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := service.NewUserService(
		repository.NewUserRepository(pool, log),
		repository.NewPermissionRepository(pool, log),
		log,
	)
	return users.SeedPermissions(ctx)
}
