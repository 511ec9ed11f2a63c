// Package cmd implements the gobulk command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile         string
	logLevel        string
	logFormat       string
	deleteBatchSize int
	pollInterval    float64
	pollTimeout     float64
)

var rootCmd = &cobra.Command{
	Use:   "gobulk",
	Short: "MySQL bulk mutation driver with verification",
	Long: `gobulk drives batches of synthetic create, update, and delete mutations
against MySQL tables and verifies the store after every phase.

Features:
  - Full mutation cycles per configured workload (create, update, delete)
  - Layout-aware deletion: set-based bulk deletes or asynchronous delete jobs
  - Row count and id verification between phases
  - Per-table advisory locks against concurrent runs
  - Changelog bookkeeping with per-run correlation tags`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gobulk.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&deleteBatchSize, "delete-batch-size", 0,
		"Override ids per DELETE statement (0 = use config)")
	rootCmd.PersistentFlags().Float64Var(&pollInterval, "poll-interval", 0,
		"Override delete job poll interval in seconds (0 = use config)")
	rootCmd.PersistentFlags().Float64Var(&pollTimeout, "poll-timeout", 0,
		"Override delete job poll timeout in seconds (0 = use config)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel        string
	LogFormat       string
	DeleteBatchSize int
	PollInterval    float64
	PollTimeout     float64
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:        logLevel,
		LogFormat:       logFormat,
		DeleteBatchSize: deleteBatchSize,
		PollInterval:    pollInterval,
		PollTimeout:     pollTimeout,
	}
}
