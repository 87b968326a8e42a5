package commands

import (
	"github.com/spf13/cobra"

	"github.com/zhwen/stockpool/backend/pkg/config"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stockpool",
	Short: "Stock screening pool backend",
	Long: `Stockpool CLI

Imports TDX watchlist exports into Postgres, scores and ranks each
day's pool, and serves the dashboard API.

Usage:
  go run ./cmd/stockpool [command]

Examples:
  go run ./cmd/stockpool api
  go run ./cmd/stockpool import exports/20260821.xls
  go run ./cmd/stockpool snapshot
  go run ./cmd/stockpool restore --latest`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the environment config and applies global flags.
// --verbose forces debug logging regardless of LOG_LEVEL.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
