// Command inventoryctl runs inventory imports from the command line: it
// writes the template, previews and commits workbooks, and maintains the
// schema and catalogue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/inventory/internal/application"
	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "inventoryctl: %v\n", err)
		os.Exit(1)
	}
}

var envFile string

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventoryctl",
		Short: "Bulk inventory import CLI",
		Long: `inventoryctl previews and imports inventory workbooks against the same
database and rules as the HTTP service. Configuration comes from the
environment and an optional .env file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
	cmd.AddCommand(
		newTemplateCmd(),
		newPreviewCmd(),
		newImportCmd(),
		newMigrateCmd(),
		newCatalogCmd(),
	)
	return cmd
}

// loadConfig reads .env and the environment, and sends logs to stderr so
// stdout carries only command output.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Overload(envFile); err != nil {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// withApp builds the application, runs fn and closes everything.
func withApp(ctx context.Context, fn func(*application.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := application.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}
