package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrRecordMissing reports that a mutation referenced a record the store
// does not hold.
var ErrRecordMissing = errors.New("record does not exist")

// ConnectionError reports that a connection to the store could not be
// established. It is fatal for the whole run: no per-record work has
// started when it occurs.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to store at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RemoteError reports that a single store operation failed. It scopes the
// failure to one operation so callers can isolate it without abandoning the
// rest of a batch.
type RemoteError struct {
	Op    string
	Table string
	Err   error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s on table %s failed: %v", e.Op, e.Table, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// JobPollingError reports that an asynchronous delete job did not reach a
// terminal state within the polling budget. The job may still be running on
// the server; the rows it targets are in an indeterminate state.
type JobPollingError struct {
	JobID  string
	Waited time.Duration
	Err    error
}

func (e *JobPollingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delete job %s not terminal after %s: %v", e.JobID, e.Waited, e.Err)
	}
	return fmt.Sprintf("delete job %s not terminal after %s", e.JobID, e.Waited)
}

func (e *JobPollingError) Unwrap() error {
	return e.Err
}
