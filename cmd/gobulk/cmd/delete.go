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
	deleteWorkload     string
	deleteStrategy     string
	deleteNoLock       bool
	deleteSkipVerify   bool
	deleteShowFailures bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every row currently in a workload's table",
	Long: `Delete removes every row in the workload's table through the deletion
strategy, without creating or updating anything first. The strategy is
selected from the table layout; --strategy forces one.

WARNING: This permanently deletes data. Use 'plan' first to check the
current row count.

Example:
  gobulk delete --config gobulk.yaml --workload demo --strategy job`,
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteWorkload, "workload", "w", "",
		"Workload name from configuration file (required)")
	deleteCmd.MarkFlagRequired("workload")

	deleteCmd.Flags().StringVar(&deleteStrategy, "strategy", "",
		"Force the deletion strategy (bulk or job)")
	deleteCmd.Flags().BoolVar(&deleteNoLock, "no-lock", false,
		"Skip the per-table advisory lock (use with caution)")
	deleteCmd.Flags().BoolVar(&deleteSkipVerify, "skip-verify", false,
		"Skip verification after the delete")
	deleteCmd.Flags().BoolVar(&deleteShowFailures, "show-failures", false,
		"List individual record failures in the summary")

	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	// Reject bad strategy values before dialing the store
	switch deleteStrategy {
	case "", "bulk", "job":
	default:
		return fmt.Errorf("unknown deletion strategy %q (want bulk or job)", deleteStrategy)
	}

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	wc, err := cfg.GetWorkload(deleteWorkload)
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

	log.Infow("Starting delete-only pass",
		"workload", deleteWorkload,
		"config", configFile,
	)

	// Cancel the pass on SIGINT/SIGTERM
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

	r, err := runner.NewRunner(cfg, deleteWorkload, st, log)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	result, err := r.DeleteAll(ctx, runner.DeleteOptions{
		Strategy:   deleteStrategy,
		SkipLock:   deleteNoLock,
		SkipVerify: deleteSkipVerify,
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return fmt.Errorf("table '%s' is locked by another gobulk instance (use --no-lock to override)", wc.Table)
		}
		if errors.Is(err, context.Canceled) {
			log.Warn("Delete cancelled by user")
			return nil
		}
		return fmt.Errorf("delete failed: %w", err)
	}

	if len(result.Phases) == 0 {
		cmd.Printf("ℹ️  Table %s is already empty\n", result.Table)
		return nil
	}

	// Display results
	rep := report.New(cmd.OutOrStdout())
	rep.Summary("Delete", result, deleteShowFailures)

	if !result.Success {
		return fmt.Errorf("delete completed with errors")
	}

	return nil
}
