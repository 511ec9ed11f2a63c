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
	validateWorkload   string
	validateCheckStore bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and, with --check-store, connects
to MySQL and runs the preflight checks a workload's table must pass.

Checks performed:
  - Configuration syntax, required fields, and value ranges
  - Store connectivity (--check-store)
  - Table existence, columns, and InnoDB engine (--check-store)
  - Partition layout against the elastic flag (--check-store)
  - Changelog and job bookkeeping tables (--check-store)

Example:
  gobulk validate --config gobulk.yaml --check-store`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateWorkload, "workload", "w", "",
		"Validate a single workload instead of all of them")
	validateCmd.Flags().BoolVar(&validateCheckStore, "check-store", false,
		"Connect to the store and run table preflight checks")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("\n=== Configuration Validation ===\n")
	fmt.Printf("Config file: %s\n", configFile)
	fmt.Printf("Workloads found: %d\n\n", len(cfg.Workloads))

	if err := cfg.Validate(); err != nil {
		fmt.Printf("❌ Configuration invalid:\n%v\n", err)
		return fmt.Errorf("configuration validation failed")
	}
	fmt.Printf("✅ Configuration valid\n")

	if !validateCheckStore {
		fmt.Println("\n=== Validation Complete ===")
		fmt.Println("ℹ️  Store checks skipped (use --check-store to run them)")
		return nil
	}

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

	names := cfg.ListWorkloads()
	if validateWorkload != "" {
		names = []string{validateWorkload}
	}

	// Validate each workload's table
	hasErrors := false
	for _, name := range names {
		wc, err := cfg.GetWorkload(name)
		if err != nil {
			fmt.Printf("❌ %v\n\n", err)
			hasErrors = true
			continue
		}

		fmt.Printf("\n--- Workload: %s ---\n", name)
		fmt.Printf("Table: %s\n", wc.Table)
		fmt.Printf("Records: %d\n", wc.Records)

		checker, err := store.NewPreflightChecker(st.DB(), st.Database(), log)
		if err != nil {
			fmt.Printf("❌ Failed to create preflight checker: %v\n\n", err)
			hasErrors = true
			continue
		}

		spec := store.TableSpec{
			Name:    wc.Table,
			Columns: wc.EffectiveColumns(),
			Elastic: wc.Elastic,
		}
		if err := checker.RunAllChecks(ctx, spec); err != nil {
			fmt.Printf("❌ Preflight checks failed: %v\n\n", err)
			hasErrors = true
			continue
		}

		fmt.Printf("✅ All checks passed\n")
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more workloads")
	}

	fmt.Println("\n=== Validation Complete ===")
	fmt.Println("✅ All workloads validated successfully")
	return nil
}
