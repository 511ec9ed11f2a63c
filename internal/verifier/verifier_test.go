// Package verifier tests cover expectation checks against a mocked store.
package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/gobulk/internal/logger"
)

func newMock(t *testing.T) (*Verifier, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	v, err := NewVerifier(db, MethodCount, logger.NewDefault())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return v, mock, func() { _ = db.Close() }
}

// ============================================================================
// NewVerifier Tests
// ============================================================================

func TestNewVerifier_Success(t *testing.T) {
	v, _, cleanup := newMock(t)
	defer cleanup()

	if v.Method() != MethodCount {
		t.Errorf("Expected method %s, got %s", MethodCount, v.Method())
	}
	if v.chunkSize != 1000 {
		t.Errorf("Expected default chunk size 1000, got %d", v.chunkSize)
	}
}

func TestNewVerifier_NilDB(t *testing.T) {
	_, err := NewVerifier(nil, MethodCount, logger.NewDefault())
	if err == nil {
		t.Error("Expected error for nil database")
	}
}

func TestNewVerifier_DefaultMethod(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	v, err := NewVerifier(db, "", logger.NewDefault())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if v.Method() != MethodCount {
		t.Errorf("Expected default method count, got %s", v.Method())
	}
}

func TestNewVerifier_UnsupportedMethod(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()

	_, err := NewVerifier(db, VerificationMethod("sha256"), logger.NewDefault())
	if err == nil {
		t.Error("Expected error for unsupported method")
	}
}

// ============================================================================
// VerifyCount Tests
// ============================================================================

func TestVerifyCount_Match(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(100))

	result, err := v.VerifyCount(context.Background(), "bulk_demo", 100)
	if err != nil {
		t.Fatalf("VerifyCount failed: %v", err)
	}
	if !result.Match {
		t.Errorf("Expected match, got mismatch: %s", result.ErrorMessage)
	}
	if result.ActualCount != 100 {
		t.Errorf("Expected actual count 100, got %d", result.ActualCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestVerifyCount_Mismatch(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(97))

	result, err := v.VerifyCount(context.Background(), "bulk_demo", 100)
	if err != nil {
		t.Fatalf("VerifyCount failed: %v", err)
	}
	if result.Match {
		t.Error("Expected mismatch")
	}
	if result.ErrorMessage != "count mismatch: expected=100, actual=97" {
		t.Errorf("Unexpected error message: %s", result.ErrorMessage)
	}
}

func TestVerifyCount_QueryError(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo`").
		WillReturnError(errors.New("table gone"))

	_, err := v.VerifyCount(context.Background(), "bulk_demo", 100)
	if err == nil {
		t.Error("Expected error from failed count query")
	}
}

func TestVerifyCount_InvalidTable(t *testing.T) {
	v, _, cleanup := newMock(t)
	defer cleanup()

	_, err := v.VerifyCount(context.Background(), "bulk; DROP TABLE x", 0)
	if err == nil {
		t.Error("Expected error for invalid table identifier")
	}
}

// ============================================================================
// VerifyIDsPresent / VerifyIDsAbsent Tests
// ============================================================================

func TestVerifyIDsPresent_AllFound(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN \\(\\?,\\?,\\?\\)").
		WithArgs("a", "b", "c").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	result, err := v.VerifyIDsPresent(context.Background(), "bulk_demo", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("VerifyIDsPresent failed: %v", err)
	}
	if !result.Match {
		t.Errorf("Expected match, got: %s", result.ErrorMessage)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestVerifyIDsPresent_SomeMissing(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN").
		WithArgs("a", "b", "c").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	result, err := v.VerifyIDsPresent(context.Background(), "bulk_demo", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("VerifyIDsPresent failed: %v", err)
	}
	if result.Match {
		t.Error("Expected mismatch")
	}
	if result.ErrorMessage != "missing records: expected=3, found=2" {
		t.Errorf("Unexpected error message: %s", result.ErrorMessage)
	}
}

func TestVerifyIDsPresent_EmptySet(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	result, err := v.VerifyIDsPresent(context.Background(), "bulk_demo", nil)
	if err != nil {
		t.Fatalf("VerifyIDsPresent failed: %v", err)
	}
	if !result.Match {
		t.Error("Empty id set should trivially match")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Expected no queries for empty id set: %v", err)
	}
}

func TestVerifyIDsAbsent_Clean(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	result, err := v.VerifyIDsAbsent(context.Background(), "bulk_demo", []string{"a", "b"})
	if err != nil {
		t.Fatalf("VerifyIDsAbsent failed: %v", err)
	}
	if !result.Match {
		t.Errorf("Expected match, got: %s", result.ErrorMessage)
	}
}

func TestVerifyIDsAbsent_Leftovers(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	result, err := v.VerifyIDsAbsent(context.Background(), "bulk_demo", []string{"a", "b"})
	if err != nil {
		t.Fatalf("VerifyIDsAbsent failed: %v", err)
	}
	if result.Match {
		t.Error("Expected mismatch")
	}
	if result.ErrorMessage != "lingering records: expected none, found 2" {
		t.Errorf("Unexpected error message: %s", result.ErrorMessage)
	}
}

func TestCountByIDs_Chunked(t *testing.T) {
	v, mock, cleanup := newMock(t)
	defer cleanup()
	v.SetChunkSize(2)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN \\(\\?,\\?\\)").
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN \\(\\?,\\?\\)").
		WithArgs("c", "d").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM `bulk_demo` WHERE `id` IN \\(\\?\\)").
		WithArgs("e").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	result, err := v.VerifyIDsPresent(context.Background(), "bulk_demo", []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatalf("VerifyIDsPresent failed: %v", err)
	}
	if !result.Match {
		t.Errorf("Expected match across chunks, got: %s", result.ErrorMessage)
	}
	if result.ActualCount != 5 {
		t.Errorf("Expected 5 found, got %d", result.ActualCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

// ============================================================================
// Skip Method and Stats Tests
// ============================================================================

func TestVerify_SkipMethod(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()

	v, err := NewVerifier(db, MethodSkip, logger.NewDefault())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	result, err := v.VerifyCount(context.Background(), "bulk_demo", 100)
	if err != nil {
		t.Fatalf("VerifyCount failed: %v", err)
	}
	if !result.Match || result.Method != MethodSkip {
		t.Errorf("Skip should report a trivially matching result, got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Skip must not touch the database: %v", err)
	}
}

func TestVerifyStats_Add(t *testing.T) {
	stats := &VerifyStats{Method: MethodCount}

	stats.Add(&VerifyResult{Method: MethodCount, Match: true, ActualCount: 100})
	stats.Add(&VerifyResult{Method: MethodCount, Match: false, ActualCount: 97})
	stats.Add(&VerifyResult{Method: MethodSkip, Match: true})
	stats.Add(nil)

	if stats.ChecksRun != 2 {
		t.Errorf("Expected 2 checks run, got %d", stats.ChecksRun)
	}
	if stats.ChecksPassed != 1 || stats.ChecksFailed != 1 {
		t.Errorf("Expected 1 passed / 1 failed, got %d / %d", stats.ChecksPassed, stats.ChecksFailed)
	}
	if stats.RowsChecked != 197 {
		t.Errorf("Expected 197 rows checked, got %d", stats.RowsChecked)
	}
}

func TestSetChunkSize_IgnoresNonPositive(t *testing.T) {
	v, _, cleanup := newMock(t)
	defer cleanup()

	v.SetChunkSize(0)
	if v.chunkSize != 1000 {
		t.Errorf("Zero chunk size must be ignored, got %d", v.chunkSize)
	}
	v.SetChunkSize(-5)
	if v.chunkSize != 1000 {
		t.Errorf("Negative chunk size must be ignored, got %d", v.chunkSize)
	}
}
