// Package lock tests run against a live MySQL server and skip when one is
// not reachable.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// ============================================================================
// Test Configuration and Helpers
// ============================================================================

func getTestDSN() string {
	host := getEnv("TEST_MYSQL_HOST", "127.0.0.1")
	port := getEnv("TEST_MYSQL_PORT", "3306")
	user := getEnv("TEST_MYSQL_USER", "root")
	pass := getEnv("TEST_MYSQL_PASS", "secret")

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/?parseTime=true&multiStatements=true", user, pass, host, port)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func connectToTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("mysql", getTestDSN())
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("MySQL test server not available: %v", err)
	}

	return db
}

// generateUniqueLockName keeps tests isolated. MySQL caps lock names at 64
// characters, so the test name is truncated before the nano suffix.
func generateUniqueLockName(t *testing.T) string {
	testName := t.Name()
	if len(testName) > 15 {
		testName = testName[:15]
	}
	return fmt.Sprintf("t_%s_%d", testName, time.Now().UnixNano()%1000000)
}

func releaseLock(db *sql.DB, lockName string) error {
	var result sql.NullInt64
	return db.QueryRow("SELECT RELEASE_LOCK(?)", lockName).Scan(&result)
}

// ============================================================================
// Constructor Tests
// ============================================================================

func TestNewAdvisoryLock(t *testing.T) {
	db := connectToTestDB(t)
	defer db.Close()

	advisory := NewAdvisoryLock(db, "test_constructor_lock")
	if advisory == nil {
		t.Fatal("NewAdvisoryLock returned nil")
	}
	if advisory.LockName() != "test_constructor_lock" {
		t.Errorf("Lock name mismatch: got %q", advisory.LockName())
	}
	if advisory.IsHeld() {
		t.Error("New lock should not be marked as held")
	}
}

// ============================================================================
// Lock Acquisition Tests
// ============================================================================

func TestAdvisoryLock_AcquireLock_Success(t *testing.T) {
	db := connectToTestDB(t)
	defer db.Close()

	lockName := generateUniqueLockName(t)
	advisory := NewAdvisoryLock(db, lockName)

	acquired, err := advisory.AcquireLock(context.Background(), 5)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if !acquired {
		t.Error("Expected to acquire lock")
	}
	if !advisory.IsHeld() {
		t.Error("Lock should report as held after acquisition")
	}

	releaseLock(db, lockName)
}

func TestAdvisoryLock_AcquireLock_AlreadyHeld(t *testing.T) {
	db := connectToTestDB(t)
	defer db.Close()

	lockName := generateUniqueLockName(t)
	advisory := NewAdvisoryLock(db, lockName)
	ctx := context.Background()

	acquired, err := advisory.AcquireLock(ctx, 5)
	if err != nil || !acquired {
		t.Fatalf("First acquisition failed: acquired=%v err=%v", acquired, err)
	}

	// Re-acquiring the lock we already hold is a no-op.
	acquired2, err := advisory.AcquireLock(ctx, 5)
	if err != nil {
		t.Fatalf("Second AcquireLock failed: %v", err)
	}
	if !acquired2 {
		t.Error("Expected second acquisition to report held")
	}

	releaseLock(db, lockName)
}

func TestAdvisoryLock_AcquireLock_Timeout(t *testing.T) {
	db1 := connectToTestDB(t)
	defer db1.Close()
	db2 := connectToTestDB(t)
	defer db2.Close()

	lockName := generateUniqueLockName(t)
	ctx := context.Background()

	first := NewAdvisoryLock(db1, lockName)
	acquired, err := first.AcquireLock(ctx, 5)
	if err != nil || !acquired {
		t.Fatalf("First acquisition failed: acquired=%v err=%v", acquired, err)
	}

	second := NewAdvisoryLock(db2, lockName)
	start := time.Now()
	acquired2, err := second.AcquireLock(ctx, 1)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Second AcquireLock errored: %v", err)
	}
	if acquired2 {
		t.Error("Expected second acquisition to time out")
	}
	if elapsed < 900*time.Millisecond || elapsed > 1500*time.Millisecond {
		t.Errorf("Timeout duration unexpected: %v (expected ~1s)", elapsed)
	}
	if second.IsHeld() {
		t.Error("Second lock should not report as held after timeout")
	}

	releaseLock(db1, lockName)
}

func TestAdvisoryLock_AcquireLock_ContextCancellation(t *testing.T) {
	db1 := connectToTestDB(t)
	defer db1.Close()
	db2 := connectToTestDB(t)
	defer db2.Close()

	lockName := generateUniqueLockName(t)

	first := NewAdvisoryLock(db1, lockName)
	acquired, err := first.AcquireLock(context.Background(), 30)
	if err != nil || !acquired {
		t.Fatalf("First acquisition failed: acquired=%v err=%v", acquired, err)
	}

	second := NewAdvisoryLock(db2, lockName)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	acquired2, err := second.AcquireLock(ctx, 30)
	elapsed := time.Since(start)

	if err == nil {
		t.Error("Expected error due to context cancellation")
	}
	if acquired2 {
		t.Error("Expected acquisition to fail under cancelled context")
	}
	if elapsed > 2*time.Second {
		t.Errorf("Should have returned promptly on cancellation, took %v", elapsed)
	}

	releaseLock(db1, lockName)
}

func TestAdvisoryLock_TryAcquire(t *testing.T) {
	db1 := connectToTestDB(t)
	defer db1.Close()
	db2 := connectToTestDB(t)
	defer db2.Close()

	lockName := generateUniqueLockName(t)
	ctx := context.Background()

	first := NewAdvisoryLock(db1, lockName)
	acquired, err := first.TryAcquire(ctx)
	if err != nil || !acquired {
		t.Fatalf("TryAcquire on a free lock failed: acquired=%v err=%v", acquired, err)
	}

	second := NewAdvisoryLock(db2, lockName)
	start := time.Now()
	acquired2, err := second.TryAcquire(ctx)
	if err != nil {
		t.Fatalf("TryAcquire errored: %v", err)
	}
	if acquired2 {
		t.Error("TryAcquire should fail while the lock is held elsewhere")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("TryAcquire should not wait, took %v", elapsed)
	}

	releaseLock(db1, lockName)
}

func TestAdvisoryLock_ClosedConnection(t *testing.T) {
	db := connectToTestDB(t)
	lockName := generateUniqueLockName(t)
	db.Close()

	advisory := NewAdvisoryLock(db, lockName)
	if _, err := advisory.AcquireLock(context.Background(), 1); err == nil {
		t.Error("Expected error when using closed database connection")
	}
}
