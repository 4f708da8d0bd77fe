// Package cli defines Cobra command definitions for the dispatch CLI.
// This file contains the root command and shared persistent flags.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fleetworks-data/dispatch.report/internal/config"
)

var (
	dbPath     string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Fleet sensor session reconstruction and state reporting",
	Long: `Dispatch reconstructs vehicle outings from raw per-vehicle sensor
file drops, derives operational-state intervals (workshop, at depot,
emergency dispatch, on scene, end of operation, returning) and reports
per-state KPIs.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := godotenv.Load(); err != nil {
		// Missing .env is fine, the system environment still applies.
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadPipelineConfig resolves the pipeline config for a command run: the
// --config file when given, the checked-in defaults file when present,
// otherwise the built-in defaults.
func loadPipelineConfig() (*config.PipelineConfig, error) {
	if configPath != "" {
		return config.LoadPipelineConfig(configPath)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadPipelineConfig(config.DefaultConfigPath)
	}
	return config.EmptyPipelineConfig(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DISPATCH_DB", "dispatch.db"), "Path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("DISPATCH_CONFIG"), "Path to a pipeline config JSON file")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
