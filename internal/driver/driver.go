// Package driver executes batches of record mutations against a store with
// bounded concurrency. Each record in a batch gets exactly one outcome, and a
// single record's failure never aborts the rest of the batch.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/record"
	"github.com/dbsmedya/gobulk/internal/store"
)

// BatchMutationDriver fans a batch out over a worker pool. Create and update
// run one store call per record; delete is delegated to the deletion strategy
// as a single set-based call.
type BatchMutationDriver struct {
	store    store.Store
	strategy DeletionStrategy
	logger   *logger.Logger
}

// New builds a driver for the given store. The deletion strategy is selected
// from the store's table layout; override it with SetStrategy.
func New(s store.Store, log *logger.Logger) (*BatchMutationDriver, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &BatchMutationDriver{
		store:    s,
		strategy: StrategyFor(s),
		logger:   log,
	}, nil
}

// SetStrategy replaces the deletion strategy.
func (d *BatchMutationDriver) SetStrategy(strategy DeletionStrategy) {
	if strategy != nil {
		d.strategy = strategy
	}
}

// SetLogger replaces the driver's logger.
func (d *BatchMutationDriver) SetLogger(log *logger.Logger) {
	if log != nil {
		d.logger = log
	}
}

// Strategy returns the deletion strategy in effect.
func (d *BatchMutationDriver) Strategy() DeletionStrategy {
	return d.strategy
}

// Execute applies the request's operation to every record, keeping at most
// maxParallelism store calls in flight. A maxParallelism of 0 uses the
// store's recommended parallelism; negative values are an error.
//
// The returned result always holds len(request.Records) outcomes in input
// order. Per-record failures are reported in their outcome and do not abort
// the batch. Execute itself returns an error only for batch-level problems:
// an invalid request, a cancelled context, or a deletion strategy that could
// not complete. Even then the result is complete and safe to inspect.
func (d *BatchMutationDriver) Execute(ctx context.Context, request *BatchRequest, maxParallelism int) (*BatchResult, error) {
	startTime := time.Now()

	if request == nil {
		return nil, fmt.Errorf("request is nil")
	}
	if !request.Operation.Valid() {
		return nil, fmt.Errorf("unknown operation %q", request.Operation)
	}
	if maxParallelism < 0 {
		return nil, fmt.Errorf("max parallelism must not be negative, got %d", maxParallelism)
	}
	if maxParallelism == 0 {
		maxParallelism = d.store.RecommendedParallelism()
		if maxParallelism < 1 {
			maxParallelism = 1
		}
	}

	result := &BatchResult{
		Operation: request.Operation,
		Outcomes:  make([]Outcome, len(request.Records)),
	}
	for i := range result.Outcomes {
		result.Outcomes[i].Index = i
	}

	if len(request.Records) == 0 {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	d.logger.Debugf("Executing %s batch: %d records, parallelism %d", request.Operation, len(request.Records), maxParallelism)

	var err error
	if request.Operation == OperationDelete {
		err = d.executeDelete(ctx, request, result)
	} else {
		err = d.executePerRecord(ctx, request, result, maxParallelism)
	}

	result.Duration = time.Since(startTime)
	d.logger.Debugf("Batch finished: %d succeeded, %d failed in %s", result.Succeeded(), result.Failed(), result.Duration.Round(time.Millisecond))
	return result, err
}

// executePerRecord dispatches one worker per record, bounded by a semaphore.
// Cancellation stops dispatch; workers already holding a slot run to
// completion and write their own outcome.
func (d *BatchMutationDriver) executePerRecord(ctx context.Context, request *BatchRequest, result *BatchResult, maxParallelism int) error {
	semaphore := make(chan struct{}, maxParallelism)
	var wg sync.WaitGroup

	for i, rec := range request.Records {
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			d.markUndispatched(result, i, ctx.Err())
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(i int, rec *record.Record) {
			defer func() {
				<-semaphore
				wg.Done()
			}()
			result.Outcomes[i] = d.executeOne(ctx, request, i, rec)
		}(i, rec)
	}

	wg.Wait()
	return nil
}

// executeOne performs a single create or update and reports its outcome.
func (d *BatchMutationDriver) executeOne(ctx context.Context, request *BatchRequest, index int, rec *record.Record) Outcome {
	start := time.Now()
	outcome := Outcome{Index: index}

	if rec == nil {
		outcome.Err = fmt.Errorf("record %d is nil", index)
		outcome.Class = FailureInternal
		outcome.Duration = time.Since(start)
		return outcome
	}

	switch request.Operation {
	case OperationCreate:
		id, err := d.store.Create(ctx, request.Table, rec, request.Hints)
		if err != nil {
			outcome.Err = err
			outcome.Class = classifyFailure(err)
		} else {
			outcome.RecordID = id
		}
	case OperationUpdate:
		outcome.RecordID = rec.ID
		if err := d.store.Update(ctx, request.Table, rec, request.Hints); err != nil {
			outcome.Err = err
			outcome.Class = classifyFailure(err)
		}
	}

	outcome.Duration = time.Since(start)
	return outcome
}

// executeDelete collects the batch's record ids and hands them to the
// deletion strategy in one call. Records without an id get an internal
// failure outcome and are left out of the call.
func (d *BatchMutationDriver) executeDelete(ctx context.Context, request *BatchRequest, result *BatchResult) error {
	if err := ctx.Err(); err != nil {
		d.markUndispatched(result, 0, err)
		return err
	}

	ids := make([]string, 0, len(request.Records))
	selected := make([]int, 0, len(request.Records))
	for i, rec := range request.Records {
		if rec == nil || rec.ID == "" {
			result.Outcomes[i].Err = fmt.Errorf("record %d has no identifier", i)
			result.Outcomes[i].Class = FailureInternal
			continue
		}
		result.Outcomes[i].RecordID = rec.ID
		ids = append(ids, rec.ID)
		selected = append(selected, i)
	}

	if len(ids) == 0 {
		return nil
	}

	d.logger.Debugf("Deleting %d records via %s strategy", len(ids), d.strategy.Name())

	start := time.Now()
	status, err := d.strategy.Delete(ctx, request.Table, ids, request.Hints)
	elapsed := time.Since(start)
	result.Status = status

	if err != nil {
		class := classifyFailure(err)
		for _, i := range selected {
			result.Outcomes[i].Err = err
			result.Outcomes[i].Class = class
			result.Outcomes[i].Duration = elapsed
		}
		return err
	}

	for _, i := range selected {
		result.Outcomes[i].Duration = elapsed
	}
	return nil
}

// markUndispatched fails every outcome from index on as cancelled. Workers
// dispatched before index own their slots and are not touched.
func (d *BatchMutationDriver) markUndispatched(result *BatchResult, from int, cause error) {
	for i := from; i < len(result.Outcomes); i++ {
		result.Outcomes[i].Err = fmt.Errorf("cancelled before dispatch: %w", cause)
		result.Outcomes[i].Class = FailureCanceled
	}
}

func classifyFailure(err error) FailureClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return FailureCanceled
	}
	return FailureRemote
}
