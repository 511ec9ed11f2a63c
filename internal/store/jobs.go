package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// JobStatus represents the state of an asynchronous delete job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (js JobStatus) Terminal() bool {
	return js == JobStatusSucceeded || js == JobStatusFailed
}

const createDeleteJobTableSQL = `
CREATE TABLE IF NOT EXISTS gobulk_jobs (
	job_id CHAR(27) PRIMARY KEY,
	table_name VARCHAR(255) NOT NULL,
	total_ids INT NOT NULL DEFAULT 0,
	deleted_rows BIGINT NOT NULL DEFAULT 0,
	status VARCHAR(20) NOT NULL DEFAULT 'queued',
	error_message TEXT,
	submitted_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
	started_at TIMESTAMP(6) NULL,
	finished_at TIMESTAMP(6) NULL,
	INDEX idx_status (status),
	INDEX idx_table (table_name),
	INDEX idx_submitted (submitted_at)
) ENGINE=InnoDB;
`

const insertDeleteJobSQL = `
INSERT INTO gobulk_jobs (job_id, table_name, total_ids, status)
VALUES (?, ?, ?, ?)`

// Job is a row of the delete-job bookkeeping table.
type Job struct {
	ID           string
	Table        string
	TotalIDs     int
	DeletedRows  int64
	Status       JobStatus
	ErrorMessage string
	SubmittedAt  time.Time
	StartedAt    sql.NullTime
	FinishedAt   sql.NullTime
}

// ensureJobTable creates the bookkeeping table if it doesn't exist.
// Idempotent and safe to call on every submit.
func (s *MySQLStore) ensureJobTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createDeleteJobTableSQL); err != nil {
		return fmt.Errorf("failed to create job table: %w", err)
	}
	return nil
}

// SubmitDeleteJob records a queued job row, starts the delete in the
// background, and returns a handle for polling it. The job keeps running
// if the submitting context is cancelled; Close waits for it.
func (s *MySQLStore) SubmitDeleteJob(ctx context.Context, table string, ids []string, hints Hints) (JobHandle, error) {
	if err := s.ensureJobTable(ctx); err != nil {
		return nil, &RemoteError{Op: "submit delete job", Table: table, Err: err}
	}

	jobID := ksuid.New().String()
	if _, err := s.db.ExecContext(ctx, insertDeleteJobSQL, jobID, table, len(ids), JobStatusQueued); err != nil {
		return nil, &RemoteError{Op: "submit delete job", Table: table, Err: err}
	}

	idsCopy := make([]string, len(ids))
	copy(idsCopy, ids)

	s.jobs.Add(1)
	go s.runDeleteJob(context.WithoutCancel(ctx), jobID, table, idsCopy, hints)

	s.logger.Debugf("Submitted delete job %s for %d ids on table %s", jobID, len(ids), table)
	return &mysqlJobHandle{
		store:    s,
		id:       jobID,
		interval: s.pollInterval,
		timeout:  s.pollTimeout,
	}, nil
}

// runDeleteJob executes a submitted delete job and records its outcome.
func (s *MySQLStore) runDeleteJob(ctx context.Context, jobID, table string, ids []string, hints Hints) {
	defer s.jobs.Done()

	if err := s.markJobRunning(ctx, jobID); err != nil {
		s.logger.Errorf("Delete job %s could not start: %v", jobID, err)
		return
	}

	deleted, err := s.deleteInBatches(ctx, table, ids, hints)
	if err != nil {
		s.logger.Errorf("Delete job %s failed after %d rows: %v", jobID, deleted, err)
		if markErr := s.markJobFailed(ctx, jobID, deleted, err.Error()); markErr != nil {
			s.logger.Errorf("Delete job %s could not record failure: %v", jobID, markErr)
		}
		return
	}

	if err := s.markJobSucceeded(ctx, jobID, deleted); err != nil {
		s.logger.Errorf("Delete job %s could not record success: %v", jobID, err)
		return
	}
	s.logger.Debugf("Delete job %s removed %d rows from %s", jobID, deleted, table)
}

func (s *MySQLStore) markJobRunning(ctx context.Context, jobID string) error {
	query := `UPDATE gobulk_jobs SET status = ?, started_at = NOW(6) WHERE job_id = ?`
	if _, err := s.db.ExecContext(ctx, query, JobStatusRunning, jobID); err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

func (s *MySQLStore) markJobSucceeded(ctx context.Context, jobID string, deleted int64) error {
	query := `UPDATE gobulk_jobs SET status = ?, deleted_rows = ?, finished_at = NOW(6) WHERE job_id = ?`
	if _, err := s.db.ExecContext(ctx, query, JobStatusSucceeded, deleted, jobID); err != nil {
		return fmt.Errorf("failed to mark job succeeded: %w", err)
	}
	return nil
}

func (s *MySQLStore) markJobFailed(ctx context.Context, jobID string, deleted int64, message string) error {
	query := `UPDATE gobulk_jobs SET status = ?, deleted_rows = ?, error_message = ?, finished_at = NOW(6) WHERE job_id = ?`
	if _, err := s.db.ExecContext(ctx, query, JobStatusFailed, deleted, message, jobID); err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// getJob loads a single job row.
func (s *MySQLStore) getJob(ctx context.Context, jobID string) (*Job, error) {
	query := `
		SELECT job_id, table_name, total_ids, deleted_rows, status, error_message, submitted_at, started_at, finished_at
		FROM gobulk_jobs
		WHERE job_id = ?`

	job := &Job{}
	var errMsg sql.NullString
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.Table,
		&job.TotalIDs,
		&job.DeletedRows,
		&job.Status,
		&errMsg,
		&job.SubmittedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("delete job %s not found", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load delete job %s: %w", jobID, err)
	}
	job.ErrorMessage = errMsg.String
	return job, nil
}

// ListJobs returns the most recently submitted jobs, newest first.
func (s *MySQLStore) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT job_id, table_name, total_ids, deleted_rows, status, error_message, submitted_at, started_at, finished_at
		FROM gobulk_jobs
		ORDER BY submitted_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list delete jobs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warnf("Failed to close rows in job listing: %v", err)
		}
	}()

	var jobs []Job
	for rows.Next() {
		var job Job
		var errMsg sql.NullString
		if err := rows.Scan(
			&job.ID,
			&job.Table,
			&job.TotalIDs,
			&job.DeletedRows,
			&job.Status,
			&errMsg,
			&job.SubmittedAt,
			&job.StartedAt,
			&job.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delete job: %w", err)
		}
		job.ErrorMessage = errMsg.String
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read delete jobs: %w", err)
	}
	return jobs, nil
}

// mysqlJobHandle polls a delete job's bookkeeping row.
type mysqlJobHandle struct {
	store    *MySQLStore
	id       string
	interval time.Duration
	timeout  time.Duration
}

var _ JobHandle = (*mysqlJobHandle)(nil)

// ID returns the job identifier.
func (h *mysqlJobHandle) ID() string {
	return h.id
}

// Poll probes the job's current status once.
func (h *mysqlJobHandle) Poll(ctx context.Context) (JobStatus, error) {
	job, err := h.store.getJob(ctx, h.id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// PollUntilComplete polls until the job reaches a terminal state.
//
// Probe errors are retried until the budget runs out; a job that never
// terminates within the budget fails with *JobPollingError. A job that
// terminates as failed returns its status alongside an error carrying the
// recorded failure message.
func (h *mysqlJobHandle) PollUntilComplete(ctx context.Context) (string, error) {
	deadline := time.Now().Add(h.timeout)
	var lastErr error

	for {
		// Check for context cancellation (graceful shutdown)
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("job polling cancelled: %w", err)
		}

		job, err := h.store.getJob(ctx, h.id)
		if err != nil {
			lastErr = err
			h.store.logger.Warnf("Poll of delete job %s failed: %v (retrying in %s)", h.id, err, h.interval)
		} else if job.Status.Terminal() {
			status := fmt.Sprintf("%s: %d rows", job.Status, job.DeletedRows)
			if job.Status == JobStatusFailed {
				return status, fmt.Errorf("delete job %s failed: %s", h.id, job.ErrorMessage)
			}
			return status, nil
		} else {
			h.store.logger.Debugf("Delete job %s is %s", h.id, job.Status)
		}

		if time.Now().After(deadline) {
			return "", &JobPollingError{JobID: h.id, Waited: h.timeout, Err: lastErr}
		}

		// Wait before rechecking
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("job polling cancelled: %w", ctx.Err())
		case <-time.After(h.interval):
			// Continue loop to recheck
		}
	}
}
