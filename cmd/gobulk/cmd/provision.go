package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/spf13/cobra"
)

var (
	provisionWorkload string
	provisionElastic  bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create a workload's table, changelog, and job bookkeeping",
	Long: `Provision creates the workload's target table (hash partitioned when
elastic), its changelog table, and the shared delete job bookkeeping
table. Every statement is idempotent, so provisioning an existing table
is a no-op.

Example:
  gobulk provision --config gobulk.yaml --workload demo --elastic`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().StringVarP(&provisionWorkload, "workload", "w", "",
		"Workload name from configuration file (required)")
	provisionCmd.MarkFlagRequired("workload")

	provisionCmd.Flags().BoolVar(&provisionElastic, "elastic", false,
		"Provision the elastic (hash partitioned) layout")

	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	wc, err := cfg.GetWorkload(provisionWorkload)
	if err != nil {
		return err
	}
	elastic := wc.Elastic || provisionElastic

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

	st, err := store.Connect(ctx, &cfg.Store, log, store.WithElastic(elastic))
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	spec := store.TableSpec{
		Name:    wc.Table,
		Columns: wc.EffectiveColumns(),
		Elastic: elastic,
	}
	if err := st.CreateTable(ctx, spec); err != nil {
		return fmt.Errorf("provision failed: %w", err)
	}

	layout := "conventional"
	if elastic {
		layout = "elastic (hash partitioned)"
	}

	fmt.Printf("\n=== Provision Complete ===\n")
	fmt.Printf("Table: %s\n", wc.Table)
	fmt.Printf("Changelog: %s\n", store.ChangelogTable(wc.Table))
	fmt.Printf("Columns: id, %s\n", strings.Join(wc.EffectiveColumns(), ", "))
	fmt.Printf("Layout: %s\n", layout)

	return nil
}
