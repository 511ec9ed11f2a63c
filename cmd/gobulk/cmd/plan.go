package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/runner"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/spf13/cobra"
)

var planWorkload string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan for a workload",
	Long: `Plan resolves the settings a run would use and prints them without
mutating anything. Only read statements are issued against the store.

The plan shows:
  - Target table, columns, and current row count
  - Per-phase record estimates and delete batching
  - Effective parallelism and deletion strategy
  - Changelog and correlation tag settings

Example:
  gobulk plan --config gobulk.yaml --workload demo`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planWorkload, "workload", "w", "",
		"Workload name from configuration file (required)")
	planCmd.MarkFlagRequired("workload")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Workload must exist before we dial the store
	wc, err := cfg.GetWorkload(planWorkload)
	if err != nil {
		return err
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

	st, err := store.Connect(ctx, &cfg.Store, log, store.WithElastic(wc.Elastic))
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	p, err := runner.NewPlanner(cfg, planWorkload, st, log)
	if err != nil {
		return fmt.Errorf("failed to create planner: %w", err)
	}

	result, err := p.Plan(ctx)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	p.DisplayExecutionPlan(result)

	return nil
}
