package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/lock"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/report"
	"github.com/dbsmedya/gobulk/internal/runner"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/spf13/cobra"
)

var (
	runWorkload        string
	runRecords         int
	runParallelism     int
	runTag             string
	runElastic         bool
	runBypassChangelog bool
	runNoProvision     bool
	runKeepTable       bool
	runNoLock          bool
	runSkipVerify      bool
	runShowFailures    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full mutation cycle for a workload",
	Long: `Run provisions the workload's table and drives the configured number of
synthetic records through create, update, and delete batches, verifying
row counts and ids after each phase.

The cycle follows these steps:
  1. Provision the target table, changelog, and job bookkeeping
  2. Acquire the per-table advisory lock
  3. Create the records and verify them
  4. Update every created record and verify again
  5. Delete everything through the layout-selected strategy
  6. Verify the table is back at its baseline, then tear down

Example:
  gobulk run --config gobulk.yaml --workload demo`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runWorkload, "workload", "w", "",
		"Workload name from configuration file (required)")
	runCmd.MarkFlagRequired("workload")

	runCmd.Flags().IntVar(&runRecords, "records", -1,
		"Override record count for this run")
	runCmd.Flags().IntVar(&runParallelism, "parallelism", 0,
		"Override parallelism (0 = store recommendation)")
	runCmd.Flags().StringVar(&runTag, "tag", "",
		"Correlation tag written to the changelog")
	runCmd.Flags().BoolVar(&runElastic, "elastic", false,
		"Treat the workload's table as elastic (hash partitioned)")
	runCmd.Flags().BoolVar(&runBypassChangelog, "bypass-changelog", false,
		"Skip changelog writes for this run")

	runCmd.Flags().BoolVar(&runNoProvision, "no-provision", false,
		"Assume the table already exists instead of provisioning it")
	runCmd.Flags().BoolVar(&runKeepTable, "keep-table", false,
		"Leave the provisioned table in place after the run")
	runCmd.Flags().BoolVar(&runNoLock, "no-lock", false,
		"Skip the per-table advisory lock (use with caution)")
	runCmd.Flags().BoolVar(&runSkipVerify, "skip-verify", false,
		"Skip row count and id verification between phases")
	runCmd.Flags().BoolVar(&runShowFailures, "show-failures", false,
		"List individual record failures in the summary")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Get workload config first
	wc, err := cfg.GetWorkload(runWorkload)
	if err != nil {
		return err
	}

	// Apply CLI overrides
	overrides := GetCLIOverrides()
	cfg.ApplyOverrides(overrides.LogLevel, overrides.LogFormat,
		overrides.DeleteBatchSize, overrides.PollInterval, overrides.PollTimeout)
	config.ApplyWorkloadOverrides(wc, runRecords, runParallelism, runTag,
		runElastic, runBypassChangelog)
	cfg.Workloads[runWorkload] = *wc

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infow("Starting mutation run",
		"workload", runWorkload,
		"config", configFile,
	)

	// Cancel the run on SIGINT/SIGTERM
	ctx := store.SetupSignalHandlerWithCallback(func(sig os.Signal) {
		log.Warnw("Received shutdown signal - completing in-flight statements",
			"signal", sig.String())
	})

	processing := wc.EffectiveProcessing(cfg.Processing)

	// Connect to the store
	st, err := store.Connect(ctx, &cfg.Store, log,
		store.WithElastic(wc.Elastic),
		store.WithDeleteBatchSize(processing.DeleteBatchSize),
		store.WithPollInterval(time.Duration(processing.PollIntervalSeconds*float64(time.Second))),
		store.WithPollTimeout(time.Duration(processing.PollTimeoutSeconds*float64(time.Second))),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer st.Close()

	r, err := runner.NewRunner(cfg, runWorkload, st, log)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	result, err := r.Run(ctx, runner.RunOptions{
		Provision:  !runNoProvision,
		KeepTable:  runKeepTable,
		SkipLock:   runNoLock,
		SkipVerify: runSkipVerify,
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return fmt.Errorf("table '%s' is locked by another gobulk instance (use --no-lock to override)", wc.Table)
		}
		if errors.Is(err, context.Canceled) {
			log.Warn("Run cancelled by user")
			return nil
		}
		return fmt.Errorf("run failed: %w", err)
	}

	// Display results
	rep := report.New(cmd.OutOrStdout())
	rep.RunSummary(result, runShowFailures)

	if !result.Success {
		return fmt.Errorf("run completed with errors")
	}

	return nil
}
