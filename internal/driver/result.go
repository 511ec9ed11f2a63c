package driver

import (
	"time"

	"github.com/dbsmedya/gobulk/internal/record"
	"github.com/dbsmedya/gobulk/internal/store"
)

// Operation identifies the mutation a batch applies to every record.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// BatchRequest describes one batch of same-operation mutations. The driver
// reads it, never mutates it.
type BatchRequest struct {
	Table     string
	Operation Operation
	Records   []*record.Record
	Hints     store.Hints
}

// FailureClass classifies a failed outcome.
type FailureClass string

const (
	// FailureRemote means the store rejected or could not perform the
	// operation for this record.
	FailureRemote FailureClass = "remote"
	// FailureCanceled means the run was cancelled before or while this
	// record's operation ran.
	FailureCanceled FailureClass = "canceled"
	// FailureInternal means the record could not be dispatched at all, for
	// example a nil record or a delete without an identifier.
	FailureInternal FailureClass = "internal"
)

// Outcome is the per-record result of a batch, index-aligned with the
// request's records.
type Outcome struct {
	Index int
	// RecordID is the server-assigned id for creates, or the referenced id
	// for updates and deletes. Empty when the id was never established.
	RecordID string
	Err      error
	Class    FailureClass
	Duration time.Duration
}

// Succeeded reports whether the record's operation completed.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// BatchResult carries exactly one outcome per submitted record, in input
// order, regardless of the order workers finished in.
type BatchResult struct {
	Operation Operation
	Outcomes  []Outcome
	// Status is the terminal status string of the deletion strategy; empty
	// for create and update batches.
	Status   string
	Duration time.Duration
}

// Succeeded counts the outcomes that completed.
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts the outcomes that did not complete.
func (r *BatchResult) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// FailedOutcomes returns the failed outcomes in input order.
func (r *BatchResult) FailedOutcomes() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}
