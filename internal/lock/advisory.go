// Package lock provides MySQL advisory locking so two gobulk instances never
// mutate the same table at the same time.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockTimeout is returned when lock acquisition times out because another
// instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Timeout values for lock acquisition, in seconds.
const (
	// TimeoutImmediate returns without waiting.
	TimeoutImmediate = 0

	// TimeoutShort fails fast when another instance is already running.
	TimeoutShort = 1

	// TimeoutMedium rides out transient conflicts.
	TimeoutMedium = 10

	// TimeoutLong queues behind a running instance.
	TimeoutLong = 60

	// TimeoutInfinite waits until the lock is acquired. MySQL treats
	// negative timeouts as infinite.
	TimeoutInfinite = -1
)

// AdvisoryLock is a named MySQL lock backed by GET_LOCK(). The server
// releases it when the connection closes, RELEASE_LOCK() releases it sooner.
type AdvisoryLock struct {
	db       *sql.DB
	lockName string
	held     bool
}

// NewAdvisoryLock creates an advisory lock with the given name. The lock is
// not acquired until AcquireLock is called.
func NewAdvisoryLock(db *sql.DB, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		db:       db,
		lockName: lockName,
	}
}

// AcquireLock attempts to acquire the lock, waiting up to timeoutSeconds.
// It returns true when the lock was obtained and false on timeout.
//
// GET_LOCK() returns 1 on success, 0 on timeout, and NULL on server error.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	var result sql.NullInt64
	err := a.db.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", a.lockName, timeoutSeconds).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	if !result.Valid {
		return false, fmt.Errorf("GET_LOCK returned NULL for lock %q (possible database error)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = true
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// ReleaseLock releases the lock. It returns true when the lock was released
// and false when this instance was not holding it.
//
// RELEASE_LOCK() returns 1 on success, 0 when another session owns the lock,
// and NULL when the named lock does not exist.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var result sql.NullInt64
	err := a.db.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", a.lockName).Scan(&result)
	if err != nil {
		return false, fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}

	if !result.Valid {
		a.held = false
		return false, fmt.Errorf("RELEASE_LOCK returned NULL for lock %q (lock did not exist)", a.lockName)
	}

	switch result.Int64 {
	case 1:
		a.held = false
		return true, nil
	case 0:
		a.held = false
		return false, nil
	default:
		return false, fmt.Errorf("unexpected RELEASE_LOCK return value: %d", result.Int64)
	}
}

// IsHeld reports whether this instance currently holds the lock.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the advisory lock's name.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail acquires the lock with a short timeout and returns
// ErrLockTimeout when another instance holds it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateTableLockName builds the lock name guarding a workload table.
// Names follow "gobulk:table:{table}" so they stay namespaced from other
// MySQL locks and are easy to spot in performance_schema.metadata_locks.
func GenerateTableLockName(table string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, table)

	return fmt.Sprintf("gobulk:table:%s", sanitized)
}

// NewTableLock creates the advisory lock for a workload table.
func NewTableLock(db *sql.DB, table string) *AdvisoryLock {
	return NewAdvisoryLock(db, GenerateTableLockName(table))
}

// IsTableBusy reports whether another instance currently holds the table's
// lock. The check is not atomic; the state can change right after it returns.
func IsTableBusy(ctx context.Context, db *sql.DB, table string) (bool, error) {
	tableLock := NewTableLock(db, table)

	acquired, err := tableLock.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check lock for table %q: %w", table, err)
	}

	if acquired {
		// Acquired means nobody was running; put it back.
		if _, releaseErr := tableLock.ReleaseLock(ctx); releaseErr != nil {
			_ = releaseErr // auto-releases with the connection
		}
		return false, nil
	}

	return true, nil
}

// WithLock runs fn while holding the lock and releases it afterwards, panics
// included. Returns ErrLockTimeout when the lock cannot be acquired in time.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		// Release on a fresh context; the caller's may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, releaseErr := a.ReleaseLock(releaseCtx); releaseErr != nil {
			_ = releaseErr // auto-releases with the connection
		}
	}()

	return fn()
}

// WithTableLock runs fn while holding the table's advisory lock, failing fast
// with ErrLockTimeout when another instance is mutating the table.
//
//	err := lock.WithTableLock(ctx, db, "bulk_demo", func() error {
//	    return runCycle()
//	})
//	if errors.Is(err, lock.ErrLockTimeout) {
//	    log.Info("Another instance is working on this table")
//	}
func WithTableLock(ctx context.Context, db *sql.DB, table string, fn func() error) error {
	tableLock := NewTableLock(db, table)
	return tableLock.WithLock(ctx, TimeoutShort, fn)
}
