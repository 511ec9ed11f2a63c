// Package verifier checks table state against expectations between mutation
// phases.
package verifier

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/sqlutil"
)

// VerificationMethod defines how phase results are verified.
type VerificationMethod string

const (
	// MethodCount compares row counts against expectations (fast).
	MethodCount VerificationMethod = "count"
	// MethodSkip skips verification entirely.
	MethodSkip VerificationMethod = "skip"
)

// VerifyResult holds the outcome of a single check.
type VerifyResult struct {
	Table         string
	Method        VerificationMethod
	ExpectedCount int64
	ActualCount   int64
	Match         bool
	ErrorMessage  string
}

// VerifyStats accumulates check outcomes across a run.
type VerifyStats struct {
	ChecksRun    int
	ChecksPassed int
	ChecksFailed int
	RowsChecked  int64
	Method       VerificationMethod
}

// Add folds one check result into the stats. Skipped checks are not counted.
func (s *VerifyStats) Add(result *VerifyResult) {
	if result == nil || result.Method == MethodSkip {
		return
	}
	s.ChecksRun++
	if result.Match {
		s.ChecksPassed++
	} else {
		s.ChecksFailed++
	}
	s.RowsChecked += result.ActualCount
}

// Verifier checks a table store against post-phase expectations: row totals
// after creates and updates, id presence after creates, id absence after
// deletes.
type Verifier struct {
	db        *sql.DB
	method    VerificationMethod
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier for the given handle. An empty method
// defaults to count.
func NewVerifier(db *sql.DB, method VerificationMethod, log *logger.Logger) (*Verifier, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	switch method {
	case "":
		method = MethodCount
	case MethodCount, MethodSkip:
	default:
		return nil, fmt.Errorf("unsupported verification method: %s", method)
	}

	return &Verifier{
		db:        db,
		method:    method,
		chunkSize: 1000,
		logger:    log,
	}, nil
}

// VerifyCount compares the table's total row count to expected.
func (v *Verifier) VerifyCount(ctx context.Context, table string, expected int64) (*VerifyResult, error) {
	if v.method == MethodSkip {
		return v.skipped(table), nil
	}

	quoted, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return nil, err
	}

	var actual int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoted)
	if err := v.db.QueryRowContext(ctx, query).Scan(&actual); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}

	result := &VerifyResult{
		Table:         table,
		Method:        MethodCount,
		ExpectedCount: expected,
		ActualCount:   actual,
		Match:         actual == expected,
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("count mismatch: expected=%d, actual=%d", expected, actual)
	}

	v.logResult(result)
	return result, nil
}

// VerifyIDsPresent checks that every given id exists in the table.
func (v *Verifier) VerifyIDsPresent(ctx context.Context, table string, ids []string) (*VerifyResult, error) {
	if v.method == MethodSkip {
		return v.skipped(table), nil
	}

	found, err := v.countByIDs(ctx, table, ids)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Table:         table,
		Method:        MethodCount,
		ExpectedCount: int64(len(ids)),
		ActualCount:   found,
		Match:         found == int64(len(ids)),
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("missing records: expected=%d, found=%d", len(ids), found)
	}

	v.logResult(result)
	return result, nil
}

// VerifyIDsAbsent checks that none of the given ids remain in the table.
func (v *Verifier) VerifyIDsAbsent(ctx context.Context, table string, ids []string) (*VerifyResult, error) {
	if v.method == MethodSkip {
		return v.skipped(table), nil
	}

	found, err := v.countByIDs(ctx, table, ids)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Table:         table,
		Method:        MethodCount,
		ExpectedCount: 0,
		ActualCount:   found,
		Match:         found == 0,
	}
	if !result.Match {
		result.ErrorMessage = fmt.Sprintf("lingering records: expected none, found %d", found)
	}

	v.logResult(result)
	return result, nil
}

// countByIDs counts rows matching the ids, chunked so large batches do not
// exceed placeholder limits.
func (v *Verifier) countByIDs(ctx context.Context, table string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	quoted, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := 0; i < len(ids); i += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("verification interrupted: %w", err)
		}

		end := i + v.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[i:end]

		args := make([]interface{}, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}

		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE `id` IN (%s)",
			quoted, sqlutil.Placeholders(len(chunk)))

		var count int64
		if err := v.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
			return total, fmt.Errorf("failed to count %s by id: %w", table, err)
		}
		total += count
	}

	return total, nil
}

func (v *Verifier) skipped(table string) *VerifyResult {
	v.logger.Infof("Verification SKIPPED for table %q (method=skip)", table)
	return &VerifyResult{
		Table:  table,
		Method: MethodSkip,
		Match:  true,
	}
}

func (v *Verifier) logResult(result *VerifyResult) {
	if result.Match {
		v.logger.Debugf("Verification PASSED for table %q (%d rows)", result.Table, result.ActualCount)
	} else {
		v.logger.Errorf("Verification FAILED for table %q: %s", result.Table, result.ErrorMessage)
	}
}

// SetChunkSize sets the id-chunk size for IN-clause counting.
func (v *Verifier) SetChunkSize(size int) {
	if size > 0 {
		v.chunkSize = size
	}
}

// SetLogger sets a custom logger for the verifier.
func (v *Verifier) SetLogger(log *logger.Logger) {
	if log != nil {
		v.logger = log
	}
}

// Method returns the configured verification method.
func (v *Verifier) Method() VerificationMethod {
	return v.method
}
