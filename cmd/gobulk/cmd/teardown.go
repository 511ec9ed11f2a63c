package cmd

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/spf13/cobra"
)

var (
	teardownWorkload string
	teardownForce    bool
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Drop a workload's table and changelog",
	Long: `Teardown drops the workload's target table and its changelog table. When
the table still holds rows the command refuses unless --force is given.
The shared job bookkeeping table is never dropped.

WARNING: This permanently deletes the table. Use 'plan' first to check
the current row count.

Example:
  gobulk teardown --config gobulk.yaml --workload demo --force`,
	RunE: runTeardown,
}

func init() {
	teardownCmd.Flags().StringVarP(&teardownWorkload, "workload", "w", "",
		"Workload name from configuration file (required)")
	teardownCmd.MarkFlagRequired("workload")

	teardownCmd.Flags().BoolVar(&teardownForce, "force", false,
		"Drop the table even when it still holds rows")

	rootCmd.AddCommand(teardownCmd)
}

func runTeardown(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	wc, err := cfg.GetWorkload(teardownWorkload)
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

	exists, err := st.TableExists(ctx, wc.Table)
	if err != nil {
		return fmt.Errorf("failed to check table %s: %w", wc.Table, err)
	}
	if !exists {
		cmd.Printf("ℹ️  Table %s does not exist, nothing to drop\n", wc.Table)
		return nil
	}

	rows, err := st.CountRows(ctx, wc.Table)
	if err != nil {
		return fmt.Errorf("failed to count rows in %s: %w", wc.Table, err)
	}
	if rows > 0 && !teardownForce {
		return fmt.Errorf("table %s still holds %d row(s), refusing to drop (use --force to override)", wc.Table, rows)
	}

	if err := st.DropTable(ctx, wc.Table); err != nil {
		return fmt.Errorf("teardown failed: %w", err)
	}

	log.Infow("Dropped table and changelog",
		"table", wc.Table,
		"rows", rows,
	)

	fmt.Printf("\n=== Teardown Complete ===\n")
	fmt.Printf("Table: %s\n", wc.Table)
	fmt.Printf("Changelog: %s\n", store.ChangelogTable(wc.Table))
	fmt.Printf("Rows dropped with it: %d\n", rows)

	return nil
}
