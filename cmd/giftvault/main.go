package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/giftvault/giftvault/internal/app"
	"github.com/giftvault/giftvault/internal/config"
)

var configPath string

// newRootCmd builds the CLI command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "giftvault",
		Short:         "Gift card storefront and balance ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to the YAML config file")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, config.AppConfig{ConfigPath: configPath})
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), config.AppConfig{ConfigPath: configPath})
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

func main() {
	// Load .env before anything reads the environment. A missing file is
	// fine; explicit environment variables still win.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
