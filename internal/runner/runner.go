// Package runner orchestrates full mutation cycles: optional provisioning,
// preflight, synthetic record generation, then create, update, and delete
// batches with verification between phases.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/driver"
	"github.com/dbsmedya/gobulk/internal/lock"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/record"
	"github.com/dbsmedya/gobulk/internal/store"
	"github.com/dbsmedya/gobulk/internal/verifier"
)

// PhaseResult summarizes one mutation phase of a cycle.
type PhaseResult struct {
	Phase     string
	Records   int
	Succeeded int
	Failed    int
	// Status is the deletion strategy's terminal status; empty for create
	// and update phases.
	Status   string
	Duration time.Duration
	Failures []driver.Outcome
}

// RunResult contains statistics and status of a full mutation cycle.
type RunResult struct {
	Workload    string
	Table       string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Parallelism int
	Strategy    string
	Phases      []PhaseResult
	Verify      verifier.VerifyStats
	Errors      []error
	Success     bool
}

// TotalSucceeded sums per-record successes across phases.
func (r *RunResult) TotalSucceeded() int {
	n := 0
	for _, p := range r.Phases {
		n += p.Succeeded
	}
	return n
}

// TotalFailed sums per-record failures across phases.
func (r *RunResult) TotalFailed() int {
	n := 0
	for _, p := range r.Phases {
		n += p.Failed
	}
	return n
}

// RunOptions adjusts which steps of a cycle execute. The zero value runs the
// bare mutation cycle against an already provisioned table.
type RunOptions struct {
	// Provision creates the target table, its changelog table, and the job
	// bookkeeping table before the cycle starts.
	Provision bool
	// KeepTable leaves a provisioned table in place after the run instead of
	// dropping it. Tables the run did not provision are never dropped.
	KeepTable bool
	// SkipLock runs without the per-table advisory lock.
	SkipLock bool
	// SkipVerify disables the row count and id checks between phases.
	SkipVerify bool
}

// DeleteOptions adjusts a delete-only pass.
type DeleteOptions struct {
	// Strategy forces the deletion strategy: "bulk" or "job". Empty keeps
	// the store's capability-based selection.
	Strategy   string
	SkipLock   bool
	SkipVerify bool
}

// Runner drives one workload through a create, update, delete cycle against
// the store, holding the table's advisory lock for the duration.
type Runner struct {
	cfg        *config.Config
	workload   string
	wc         *config.WorkloadConfig
	store      *store.MySQLStore
	driver     *driver.BatchMutationDriver
	verifier   *verifier.Verifier
	logger     *logger.Logger
	processing config.ProcessingConfig
}

// NewRunner creates a runner for the named workload.
func NewRunner(cfg *config.Config, workload string, st *store.MySQLStore, log *logger.Logger) (*Runner, error) {
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

	d, err := driver.New(st, log)
	if err != nil {
		return nil, err
	}

	v, err := verifier.NewVerifier(st.DB(), verifier.MethodCount, log)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg:        cfg,
		workload:   workload,
		wc:         wc,
		store:      st,
		driver:     d,
		verifier:   v,
		logger:     log.WithWorkload(workload),
		processing: wc.EffectiveProcessing(cfg.Processing),
	}, nil
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(log *logger.Logger) {
	if log != nil {
		r.logger = log
	}
}

// Workload returns the workload name the runner was built for.
func (r *Runner) Workload() string {
	return r.workload
}

// Processing returns the effective processing configuration.
func (r *Runner) Processing() config.ProcessingConfig {
	return r.processing
}

// Run executes the full cycle. Per-record failures are recorded in the
// result and do not abort the run; a failed phase execution, verification
// mismatch, or lock conflict does.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	parallelism := r.effectiveParallelism()
	result := r.newResult(parallelism, opts.SkipVerify)

	r.logger.Infow("Starting mutation cycle",
		"table", r.wc.Table,
		"records", r.wc.Records,
		"parallelism", parallelism,
		"strategy", result.Strategy,
	)

	spec := r.tableSpec()
	if opts.Provision {
		if err := r.store.CreateTable(ctx, spec); err != nil {
			return nil, fmt.Errorf("provision failed: %w", err)
		}
	}

	if opts.SkipLock {
		r.logger.Warnw("Skipping advisory lock acquisition", "table", r.wc.Table)
	} else {
		release, err := r.acquireTableLock(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if opts.Provision && !opts.KeepTable {
		// Drop what this run created even when a phase aborts the cycle; the
		// fresh context lets teardown proceed after cancellation.
		defer func() {
			dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.store.DropTable(dropCtx, r.wc.Table); err != nil {
				r.logger.Warnf("Teardown failed for table %s: %v", r.wc.Table, err)
			}
		}()
	}

	if err := r.preflight(ctx, spec); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	baseline, err := r.store.CountRows(ctx, r.wc.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline count: %w", err)
	}

	hints := store.Hints{Tag: r.wc.Tag, BypassChangelog: r.wc.BypassChangelog}
	records := record.Generate(r.wc.EffectiveColumns(), r.wc.Records)

	// Create phase. Server-assigned ids flow back from the outcomes; records
	// whose create failed drop out of the rest of the cycle.
	createPhase, createBatch, err := r.runPhase(ctx, driver.OperationCreate, records, hints, parallelism)
	result.Phases = append(result.Phases, createPhase)
	if err != nil {
		return r.finalize(result, fmt.Errorf("create phase: %w", err))
	}

	survivors := make([]*record.Record, 0, len(records))
	createdIDs := make([]string, 0, len(records))
	for _, o := range createBatch.Outcomes {
		if o.Succeeded() {
			records[o.Index].ID = o.RecordID
			survivors = append(survivors, records[o.Index])
			createdIDs = append(createdIDs, o.RecordID)
		}
	}
	if createPhase.Failed > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("create phase: %d of %d records failed", createPhase.Failed, len(records)))
	}

	if !opts.SkipVerify {
		if err := r.verifyPhase(ctx, result, "create", baseline+int64(len(survivors)), createdIDs, false); err != nil {
			return r.finalize(result, err)
		}
	}

	// Update phase rewrites every surviving record in place.
	record.Revise(survivors)
	updatePhase, _, err := r.runPhase(ctx, driver.OperationUpdate, survivors, hints, parallelism)
	result.Phases = append(result.Phases, updatePhase)
	if err != nil {
		return r.finalize(result, fmt.Errorf("update phase: %w", err))
	}
	if updatePhase.Failed > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("update phase: %d of %d records failed", updatePhase.Failed, len(survivors)))
	}

	if !opts.SkipVerify {
		if err := r.verifyPhase(ctx, result, "update", baseline+int64(len(survivors)), createdIDs, false); err != nil {
			return r.finalize(result, err)
		}
	}

	// Delete phase hands the whole id set to the deletion strategy.
	deletePhase, _, err := r.runPhase(ctx, driver.OperationDelete, survivors, hints, parallelism)
	result.Phases = append(result.Phases, deletePhase)
	if err != nil {
		return r.finalize(result, fmt.Errorf("delete phase: %w", err))
	}
	if deletePhase.Failed > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("delete phase: %d of %d records failed", deletePhase.Failed, len(survivors)))
	}

	if !opts.SkipVerify {
		if err := r.verifyPhase(ctx, result, "delete", baseline, createdIDs, true); err != nil {
			return r.finalize(result, err)
		}
	}

	return r.finalize(result, nil)
}

// DeleteAll removes every row currently in the workload's table through the
// deletion strategy, without creating or updating anything first. A strategy
// override set through opts stays in effect on the runner afterwards.
func (r *Runner) DeleteAll(ctx context.Context, opts DeleteOptions) (*RunResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	switch opts.Strategy {
	case "":
	case "bulk":
		r.driver.SetStrategy(driver.NewBulkDeleteStrategy(r.store))
	case "job":
		r.driver.SetStrategy(driver.NewAsyncJobDeleteStrategy(r.store))
	default:
		return nil, fmt.Errorf("unknown deletion strategy %q (want bulk or job)", opts.Strategy)
	}

	parallelism := r.effectiveParallelism()
	result := r.newResult(parallelism, opts.SkipVerify)

	r.logger.Infow("Starting delete-only pass",
		"table", r.wc.Table,
		"strategy", result.Strategy,
	)

	if opts.SkipLock {
		r.logger.Warnw("Skipping advisory lock acquisition", "table", r.wc.Table)
	} else {
		release, err := r.acquireTableLock(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	if err := r.preflight(ctx, r.tableSpec()); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	ids, err := r.store.ListIDs(ctx, r.wc.Table)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		r.logger.Infow("Table is already empty", "table", r.wc.Table)
		return r.finalize(result, nil)
	}

	records := make([]*record.Record, len(ids))
	for i, id := range ids {
		rec := record.New()
		rec.ID = id
		records[i] = rec
	}

	hints := store.Hints{Tag: r.wc.Tag, BypassChangelog: r.wc.BypassChangelog}
	deletePhase, _, err := r.runPhase(ctx, driver.OperationDelete, records, hints, parallelism)
	result.Phases = append(result.Phases, deletePhase)
	if err != nil {
		return r.finalize(result, fmt.Errorf("delete phase: %w", err))
	}
	if deletePhase.Failed > 0 {
		result.Errors = append(result.Errors, fmt.Errorf("delete phase: %d of %d records failed", deletePhase.Failed, len(records)))
	}

	if !opts.SkipVerify {
		if err := r.verifyPhase(ctx, result, "delete", 0, ids, true); err != nil {
			return r.finalize(result, err)
		}
	}

	return r.finalize(result, nil)
}

func (r *Runner) effectiveParallelism() int {
	if r.processing.Parallelism > 0 {
		return r.processing.Parallelism
	}
	return r.store.RecommendedParallelism()
}

func (r *Runner) newResult(parallelism int, skipVerify bool) *RunResult {
	result := &RunResult{
		Workload:    r.workload,
		Table:       r.wc.Table,
		StartedAt:   time.Now(),
		Parallelism: parallelism,
		Strategy:    r.driver.Strategy().Name(),
		Verify:      verifier.VerifyStats{Method: r.verifier.Method()},
	}
	if skipVerify {
		result.Verify.Method = verifier.MethodSkip
	}
	return result
}

func (r *Runner) tableSpec() store.TableSpec {
	return store.TableSpec{
		Name:    r.wc.Table,
		Columns: r.wc.EffectiveColumns(),
		Elastic: r.wc.Elastic,
	}
}

// acquireTableLock takes the table's advisory lock and returns the release
// func to defer.
func (r *Runner) acquireTableLock(ctx context.Context) (func(), error) {
	tableLock := lock.NewTableLock(r.store.DB(), r.wc.Table)
	if err := tableLock.AcquireOrFail(ctx); err != nil {
		return nil, err
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := tableLock.ReleaseLock(releaseCtx); err != nil {
			r.logger.Warnf("Failed to release table lock: %v", err)
		}
	}, nil
}

func (r *Runner) preflight(ctx context.Context, spec store.TableSpec) error {
	checker, err := store.NewPreflightChecker(r.store.DB(), r.store.Database(), r.logger)
	if err != nil {
		return err
	}
	return checker.RunAllChecks(ctx, spec)
}

func (r *Runner) runPhase(ctx context.Context, op driver.Operation, records []*record.Record, hints store.Hints, parallelism int) (PhaseResult, *driver.BatchResult, error) {
	phaseLogger := r.logger.WithPhase(string(op))
	start := time.Now()

	batch, err := r.driver.Execute(ctx, &driver.BatchRequest{
		Table:     r.wc.Table,
		Operation: op,
		Records:   records,
		Hints:     hints,
	}, parallelism)

	phase := PhaseResult{
		Phase:    string(op),
		Records:  len(records),
		Duration: time.Since(start),
	}
	if batch != nil {
		phase.Succeeded = batch.Succeeded()
		phase.Failed = batch.Failed()
		phase.Status = batch.Status
		phase.Failures = batch.FailedOutcomes()
		phase.Duration = batch.Duration
	}

	if err != nil {
		phaseLogger.Errorw("Phase aborted", "error", err)
		return phase, batch, err
	}

	phaseLogger.Infow("Phase finished",
		"succeeded", phase.Succeeded,
		"failed", phase.Failed,
		"duration", phase.Duration.Round(time.Millisecond),
	)
	return phase, batch, nil
}

// verifyPhase checks the table after a phase: the expected row total plus
// presence (or absence, after deletes) of the cycle's ids.
func (r *Runner) verifyPhase(ctx context.Context, result *RunResult, phase string, expectedRows int64, ids []string, absent bool) error {
	countRes, err := r.verifier.VerifyCount(ctx, r.wc.Table, expectedRows)
	if err != nil {
		return fmt.Errorf("verify after %s: %w", phase, err)
	}
	result.Verify.Add(countRes)
	if !countRes.Match {
		return fmt.Errorf("verify after %s: %s", phase, countRes.ErrorMessage)
	}

	var idRes *verifier.VerifyResult
	if absent {
		idRes, err = r.verifier.VerifyIDsAbsent(ctx, r.wc.Table, ids)
	} else {
		idRes, err = r.verifier.VerifyIDsPresent(ctx, r.wc.Table, ids)
	}
	if err != nil {
		return fmt.Errorf("verify after %s: %w", phase, err)
	}
	result.Verify.Add(idRes)
	if !idRes.Match {
		return fmt.Errorf("verify after %s: %s", phase, idRes.ErrorMessage)
	}

	return nil
}

func (r *Runner) finalize(result *RunResult, fatal error) (*RunResult, error) {
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	if fatal != nil {
		result.Errors = append(result.Errors, fatal)
	}
	result.Success = len(result.Errors) == 0

	r.logger.Infow("Mutation cycle finished",
		"success", result.Success,
		"succeeded", result.TotalSucceeded(),
		"failed", result.TotalFailed(),
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, fatal
}
