package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/you/kioskpay/internal/app"
	"github.com/you/kioskpay/internal/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "kioskpay",
		Short: "Kiosk donation payment service",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/config.yml or $KIOSKPAY_CONFIG)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		os.Setenv("KIOSKPAY_CONFIG", configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the kiosk HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Run(cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the payment ledger and policy tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Migrate(cfg)
		},
	}
}
