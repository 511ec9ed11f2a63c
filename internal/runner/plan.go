package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/driver"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/store"
)

// PlanResult contains the outcome of a dry-run estimation.
type PlanResult struct {
	Workload        string
	Table           string
	Columns         []string
	Records         int
	Elastic         bool
	TableExists     bool
	CurrentRows     int64
	Parallelism     int
	Recommended     int
	Strategy        string
	DeleteBatchSize int
	DeleteBatches   int
	Tag             string
	BypassChangelog bool
}

// Planner estimates what a run would do without mutating anything.
type Planner struct {
	cfg        *config.Config
	workload   string
	wc         *config.WorkloadConfig
	store      *store.MySQLStore
	logger     *logger.Logger
	processing config.ProcessingConfig
}

// NewPlanner creates a planner for the named workload.
func NewPlanner(cfg *config.Config, workload string, st *store.MySQLStore, log *logger.Logger) (*Planner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	wc, err := cfg.GetWorkload(workload)
	if err != nil {
		return nil, err
	}

	return &Planner{
		cfg:        cfg,
		workload:   workload,
		wc:         wc,
		store:      st,
		logger:     log.WithWorkload(workload),
		processing: wc.EffectiveProcessing(cfg.Processing),
	}, nil
}

// Plan inspects the table and resolves the effective settings a run would
// use. Only read statements are issued.
func (p *Planner) Plan(ctx context.Context) (*PlanResult, error) {
	p.logger.Infof("Estimating workload %q against table %s", p.workload, p.wc.Table)

	result := &PlanResult{
		Workload:        p.workload,
		Table:           p.wc.Table,
		Columns:         p.wc.EffectiveColumns(),
		Records:         p.wc.Records,
		Elastic:         p.wc.Elastic,
		Recommended:     p.store.RecommendedParallelism(),
		Strategy:        driver.StrategyFor(p.store).Name(),
		DeleteBatchSize: p.processing.DeleteBatchSize,
		Tag:             p.wc.Tag,
		BypassChangelog: p.wc.BypassChangelog,
	}

	result.Parallelism = p.processing.Parallelism
	if result.Parallelism == 0 {
		result.Parallelism = result.Recommended
	}

	exists, err := p.store.TableExists(ctx, p.wc.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to check table %s: %w", p.wc.Table, err)
	}
	result.TableExists = exists
	if exists {
		rows, err := p.store.CountRows(ctx, p.wc.Table)
		if err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", p.wc.Table, err)
		}
		result.CurrentRows = rows
	}

	if result.Records > 0 && result.DeleteBatchSize > 0 {
		result.DeleteBatches = (result.Records + result.DeleteBatchSize - 1) / result.DeleteBatchSize
	}

	return result, nil
}

// DisplayExecutionPlan prints a human-readable summary of what a run would
// do, without executing it.
func (p *Planner) DisplayExecutionPlan(result *PlanResult) {
	fmt.Printf("\n=== Dry-Run Execution Plan ===\n\n")

	fmt.Printf("Workload: %s\n", result.Workload)
	fmt.Printf("  Table: %s", result.Table)
	if result.Elastic {
		fmt.Printf(" (elastic, hash partitioned)")
	}
	fmt.Println()
	fmt.Printf("  Columns: id, %s\n", strings.Join(result.Columns, ", "))
	if result.TableExists {
		fmt.Printf("  Current rows: %d\n", result.CurrentRows)
	} else {
		fmt.Printf("  Table does not exist yet; run 'provision' first\n")
	}
	fmt.Println()

	fmt.Printf("Mutation Phases:\n")
	fmt.Printf("  1. create (~%d records)\n", result.Records)
	fmt.Printf("  2. update (~%d records)\n", result.Records)
	fmt.Printf("  3. delete (~%d records, %d batches of up to %d ids)\n",
		result.Records, result.DeleteBatches, result.DeleteBatchSize)
	fmt.Println()

	fmt.Printf("Configuration Summary:\n")
	fmt.Printf("  Parallelism: %d", result.Parallelism)
	if p.processing.Parallelism == 0 {
		fmt.Printf(" (store recommendation)")
	} else if p.wc.Processing != nil && p.wc.Processing.Parallelism != 0 {
		fmt.Printf(" (workload-specific)")
	}
	fmt.Println()
	fmt.Printf("  Deletion strategy: %s\n", result.Strategy)
	if result.Tag != "" {
		fmt.Printf("  Correlation tag: %s\n", result.Tag)
	}
	if result.BypassChangelog {
		fmt.Printf("  Changelog: bypassed\n")
	} else {
		fmt.Printf("  Changelog: enabled\n")
	}

	fmt.Println("\n=== End of Dry-Run ===")
	fmt.Println("\nℹ️  No data was modified. Use 'run' command to execute.")
}
