package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pesio-ai/be-app-crm/internal/config"
	"github.com/pesio-ai/be-app-crm/internal/logger"
	"github.com/spf13/cobra"
)

const serviceName = "crm-service"

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "Lead and call tracking CRM",
	Long: `crm serves the lead, follow-up and call tracking API.

Available subcommands:
  serve   - Run the HTTP API and the gRPC health server
  migrate - Create or upgrade the database schema
  seed    - Insert the permission catalog`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the service logger
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: serviceName,
		Pretty:      cfg.LogPretty,
	})
	return cfg, log, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
