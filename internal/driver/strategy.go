package driver

import (
	"context"

	"github.com/dbsmedya/gobulk/internal/store"
)

// DeletionStrategy removes a set of records from a table and reports the
// terminal status of the deletion. Both implementations satisfy the same
// contract: after a nil error return, none of the ids remain in the table.
type DeletionStrategy interface {
	Name() string
	Delete(ctx context.Context, table string, ids []string, hints store.Hints) (string, error)
}

// BulkDeleteStrategy deletes synchronously in one set-based call. Suited to
// elastic tables, where the partitioned layout absorbs large deletes without
// starving other sessions.
type BulkDeleteStrategy struct {
	store store.Store
}

func NewBulkDeleteStrategy(s store.Store) *BulkDeleteStrategy {
	return &BulkDeleteStrategy{store: s}
}

func (s *BulkDeleteStrategy) Name() string {
	return "bulk-delete"
}

func (s *BulkDeleteStrategy) Delete(ctx context.Context, table string, ids []string, hints store.Hints) (string, error) {
	return s.store.BulkDelete(ctx, table, ids, hints)
}

// AsyncJobDeleteStrategy submits a background delete job and polls its
// status until the job reaches a terminal state. Conventional tables take
// this path so the driver never holds a session open across a long delete.
type AsyncJobDeleteStrategy struct {
	store store.Store
}

func NewAsyncJobDeleteStrategy(s store.Store) *AsyncJobDeleteStrategy {
	return &AsyncJobDeleteStrategy{store: s}
}

func (s *AsyncJobDeleteStrategy) Name() string {
	return "async-job-delete"
}

func (s *AsyncJobDeleteStrategy) Delete(ctx context.Context, table string, ids []string, hints store.Hints) (string, error) {
	handle, err := s.store.SubmitDeleteJob(ctx, table, ids, hints)
	if err != nil {
		return "", err
	}
	return handle.PollUntilComplete(ctx)
}

// StrategyFor selects the deletion strategy matching the store's table
// layout: bulk for elastic stores, async jobs for conventional ones.
func StrategyFor(s store.Store) DeletionStrategy {
	if s.Elastic() {
		return NewBulkDeleteStrategy(s)
	}
	return NewAsyncJobDeleteStrategy(s)
}
