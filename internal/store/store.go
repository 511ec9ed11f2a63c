// Package store provides the MySQL-backed table store that gobulk mutates,
// along with table provisioning, delete-job bookkeeping, and preflight checks.
package store

import (
	"context"

	"github.com/dbsmedya/gobulk/internal/record"
)

// Hints carries optional request-level hints attached to a batch of
// mutations. The zero value means no tag and normal changelog processing.
type Hints struct {
	// Tag is a correlation tag embedded in mutation statements so operators
	// can attribute load in the processlist and slow log.
	Tag string
	// BypassChangelog skips the changelog write that normally accompanies
	// every mutation.
	BypassChangelog bool
}

// Store is the remote-service contract the mutation driver depends on.
// Implementations must be safe for concurrent use: the driver shares one
// handle across all of its workers.
type Store interface {
	// RecommendedParallelism reports the concurrency the store negotiated at
	// connect time. Always at least 1.
	RecommendedParallelism() int

	// Elastic reports whether the store's target tables use the set-based
	// storage layout. Decided by configuration, not probed at runtime; drives
	// deletion strategy selection.
	Elastic() bool

	// Create persists an unpersisted record and returns its server-assigned
	// identifier.
	Create(ctx context.Context, table string, rec *record.Record, hints Hints) (string, error)

	// Update rewrites the fields of a previously created record. Updating a
	// record that does not exist fails with ErrRecordMissing.
	Update(ctx context.Context, table string, rec *record.Record, hints Hints) error

	// BulkDelete removes the referenced records in one synchronous set-based
	// operation and returns a terminal status string.
	BulkDelete(ctx context.Context, table string, ids []string, hints Hints) (string, error)

	// SubmitDeleteJob enqueues an asynchronous delete job for the referenced
	// records and returns a handle for polling it to completion.
	SubmitDeleteJob(ctx context.Context, table string, ids []string, hints Hints) (JobHandle, error)
}

// JobHandle tracks an asynchronous delete job.
type JobHandle interface {
	// ID returns the job identifier.
	ID() string

	// Poll probes the job's current status once.
	Poll(ctx context.Context) (JobStatus, error)

	// PollUntilComplete polls at the configured interval until the job
	// reaches a terminal state, returning its terminal status string. A job
	// that never terminates within the poll budget fails with
	// *JobPollingError; a job that terminates as failed returns the status
	// alongside an error describing the failure.
	PollUntilComplete(ctx context.Context) (string, error)
}
