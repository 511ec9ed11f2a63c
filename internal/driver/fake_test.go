package driver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbsmedya/gobulk/internal/record"
	"github.com/dbsmedya/gobulk/internal/store"
)

// fakeStore is an in-memory store.Store that counts concurrent calls in
// flight, so tests can assert the driver's parallelism ceiling, and injects
// failures keyed on record content.
type fakeStore struct {
	elastic     bool
	recommended int
	// delay is how long each store call holds its slot.
	delay time.Duration

	failCreates map[string]error // keyed on the record's first field value
	failUpdates map[string]error // keyed on record id
	bulkErr     error
	submitErr   error
	pollErr     error

	inFlight atomic.Int64
	peak     atomic.Int64
	nextID   atomic.Int64

	recommendedCalls atomic.Int64

	mu          sync.Mutex
	created     []string
	updated     []string
	deleted     []string
	bulkCalls   int
	submitCalls int
	lastTable   string
	lastHints   store.Hints
}

func newFakeStore() *fakeStore {
	return &fakeStore{recommended: 4}
}

func (f *fakeStore) enter() {
	cur := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			return
		}
	}
}

func (f *fakeStore) exit() {
	f.inFlight.Add(-1)
}

func (f *fakeStore) hold(ctx context.Context) error {
	if f.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.delay):
		return nil
	}
}

func (f *fakeStore) RecommendedParallelism() int {
	f.recommendedCalls.Add(1)
	return f.recommended
}

func (f *fakeStore) Elastic() bool {
	return f.elastic
}

func (f *fakeStore) Create(ctx context.Context, table string, rec *record.Record, hints store.Hints) (string, error) {
	f.enter()
	defer f.exit()
	f.noteCall(table, hints)
	if err := f.hold(ctx); err != nil {
		return "", err
	}
	if err := f.failCreates[firstField(rec)]; err != nil {
		return "", err
	}
	id := fmt.Sprintf("rec-%04d", f.nextID.Add(1))
	f.mu.Lock()
	f.created = append(f.created, id)
	f.mu.Unlock()
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, table string, rec *record.Record, hints store.Hints) error {
	f.enter()
	defer f.exit()
	f.noteCall(table, hints)
	if err := f.hold(ctx); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("record has no identifier")
	}
	if err := f.failUpdates[rec.ID]; err != nil {
		return err
	}
	f.mu.Lock()
	f.updated = append(f.updated, rec.ID)
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) BulkDelete(ctx context.Context, table string, ids []string, hints store.Hints) (string, error) {
	f.enter()
	defer f.exit()
	f.noteCall(table, hints)
	f.mu.Lock()
	f.bulkCalls++
	f.mu.Unlock()
	if err := f.hold(ctx); err != nil {
		return "", err
	}
	if f.bulkErr != nil {
		return "", f.bulkErr
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, ids...)
	f.mu.Unlock()
	return fmt.Sprintf("completed: %d rows", len(ids)), nil
}

func (f *fakeStore) SubmitDeleteJob(ctx context.Context, table string, ids []string, hints store.Hints) (store.JobHandle, error) {
	f.noteCall(table, hints)
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.pollErr != nil {
		return &fakeJobHandle{id: "job-0001", status: "failed: 0 rows", err: f.pollErr}, nil
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, ids...)
	f.mu.Unlock()
	return &fakeJobHandle{id: "job-0001", status: fmt.Sprintf("succeeded: %d rows", len(ids))}, nil
}

func (f *fakeStore) noteCall(table string, hints store.Hints) {
	f.mu.Lock()
	f.lastTable = table
	f.lastHints = hints
	f.mu.Unlock()
}

func (f *fakeStore) createdIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

func (f *fakeStore) updatedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...)
}

func (f *fakeStore) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func firstField(rec *record.Record) string {
	names := rec.FieldNames()
	if len(names) == 0 {
		return ""
	}
	v, _ := rec.Field(names[0])
	return v
}

// fakeJobHandle reports a fixed terminal status without any real polling.
type fakeJobHandle struct {
	id     string
	status string
	err    error
	polls  atomic.Int64
}

func (h *fakeJobHandle) ID() string {
	return h.id
}

func (h *fakeJobHandle) Poll(ctx context.Context) (store.JobStatus, error) {
	h.polls.Add(1)
	if h.err != nil {
		return store.JobStatusFailed, nil
	}
	return store.JobStatusSucceeded, nil
}

func (h *fakeJobHandle) PollUntilComplete(ctx context.Context) (string, error) {
	h.polls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return h.status, h.err
}
