package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/report"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recent asynchronous delete jobs",
	Long: `Jobs lists recent rows from the delete job bookkeeping table, newest
first. Jobs are recorded whenever the asynchronous deletion strategy
runs against a conventional table.

Example:
  gobulk jobs --config gobulk.yaml --limit 10`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().IntVar(&jobsLimit, "limit", 20,
		"Maximum number of jobs to list")

	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.DeleteBatchSize, overrides.PollInterval, overrides.PollTimeout)

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()

	st, err := store.Connect(ctx, &cfg.Store, log)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	jobs, err := st.ListJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	rep := report.New(cmd.OutOrStdout())
	rep.JobTable(jobs)

	if len(jobs) > 0 {
		cmd.Printf("\nTotal: %d job(s)\n", len(jobs))
	}

	return nil
}
