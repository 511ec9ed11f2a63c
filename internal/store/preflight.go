package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dbsmedya/gobulk/internal/logger"
)

// PreflightError represents a preflight check failure.
type PreflightError struct {
	Check   string
	Message string
	Tables  []string
}

func (e *PreflightError) Error() string {
	if len(e.Tables) > 0 {
		return fmt.Sprintf("%s: %s (tables: %v)", e.Check, e.Message, e.Tables)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

// PreflightChecker verifies that a provisioned table matches what a run
// expects before any mutation is dispatched.
type PreflightChecker struct {
	db     *sql.DB
	dbName string
	logger *logger.Logger
}

// NewPreflightChecker creates a new preflight checker.
func NewPreflightChecker(db *sql.DB, dbName string, log *logger.Logger) (*PreflightChecker, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if dbName == "" {
		return nil, fmt.Errorf("database name is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &PreflightChecker{
		db:     db,
		dbName: dbName,
		logger: log,
	}, nil
}

// RunAllChecks runs all preflight checks for the given table spec.
func (p *PreflightChecker) RunAllChecks(ctx context.Context, spec TableSpec) error {
	p.logger.Info("Running preflight checks...")

	if err := p.ValidateTableExists(ctx, spec.Name); err != nil {
		return err
	}

	if err := p.ValidateColumns(ctx, spec); err != nil {
		return err
	}

	if err := p.ValidateStorageEngine(ctx, spec.Name); err != nil {
		return err
	}

	if err := p.ValidatePartitioning(ctx, spec); err != nil {
		return err
	}

	if err := p.ValidateChangelogTable(ctx, spec.Name); err != nil {
		return err
	}

	if err := p.ValidateJobTable(ctx); err != nil {
		return err
	}

	p.logger.Info("All preflight checks PASSED")
	return nil
}

// ValidateTableExists checks that the target table exists.
func (p *PreflightChecker) ValidateTableExists(ctx context.Context, table string) error {
	p.logger.Debug("Checking table existence...")

	exists, err := p.tableExists(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	if !exists {
		return &PreflightError{
			Check:   "TABLE_EXISTENCE_CHECK",
			Message: "Table not found. Run provision first",
			Tables:  []string{table},
		}
	}

	p.logger.Debugf("Table existence check PASSED (%s)", table)
	return nil
}

// ValidateColumns checks that the table carries the id column and every
// column the run will write.
func (p *PreflightChecker) ValidateColumns(ctx context.Context, spec TableSpec) error {
	p.logger.Debug("Checking columns...")

	const query = `
		SELECT COLUMN_NAME
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?`

	rows, err := p.db.QueryContext(ctx, query, p.dbName, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return err
		}
		existing[column] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var missing []string
	for _, column := range append([]string{"id"}, spec.Columns...) {
		if !existing[column] {
			missing = append(missing, fmt.Sprintf("%s.%s", spec.Name, column))
		}
	}

	if len(missing) > 0 {
		return &PreflightError{
			Check:   "COLUMN_CHECK",
			Message: "Columns missing from table. Re-provision or fix the workload columns",
			Tables:  missing,
		}
	}

	p.logger.Debugf("Column check PASSED (%d columns)", len(spec.Columns)+1)
	return nil
}

// ValidateStorageEngine checks that the target table uses InnoDB.
func (p *PreflightChecker) ValidateStorageEngine(ctx context.Context, table string) error {
	p.logger.Debug("Checking storage engine...")

	const query = `
		SELECT ENGINE
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?`

	var engine sql.NullString
	if err := p.db.QueryRowContext(ctx, query, p.dbName, table).Scan(&engine); err != nil {
		return fmt.Errorf("failed to query storage engine: %w", err)
	}

	if engine.String != "InnoDB" {
		return &PreflightError{
			Check:   "STORAGE_ENGINE_CHECK",
			Message: "Only InnoDB tables are supported. Use ALTER TABLE to convert",
			Tables:  []string{fmt.Sprintf("%s(%s)", table, engine.String)},
		}
	}

	p.logger.Debug("Storage engine check PASSED (InnoDB)")
	return nil
}

// ValidatePartitioning checks that the table's partition layout matches the
// configured elastic flag. An elastic run against an unpartitioned table is
// an error; a conventional run against a partitioned table still works and
// only warns.
func (p *PreflightChecker) ValidatePartitioning(ctx context.Context, spec TableSpec) error {
	p.logger.Debug("Checking partition layout...")

	const query = `
		SELECT COUNT(*)
		FROM information_schema.PARTITIONS
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
		AND PARTITION_NAME IS NOT NULL`

	var partitions int
	if err := p.db.QueryRowContext(ctx, query, p.dbName, spec.Name).Scan(&partitions); err != nil {
		return fmt.Errorf("failed to query partitions: %w", err)
	}

	partitioned := partitions > 0
	if spec.Elastic && !partitioned {
		return &PreflightError{
			Check:   "PARTITION_LAYOUT_CHECK",
			Message: "Elastic workload targets an unpartitioned table. Re-provision with use-elastic",
			Tables:  []string{spec.Name},
		}
	}
	if !spec.Elastic && partitioned {
		p.logger.Warnf("Table %s is partitioned (%d partitions) but the workload is not elastic", spec.Name, partitions)
	}

	p.logger.Debugf("Partition layout check PASSED (elastic=%v, partitions=%d)", spec.Elastic, partitions)
	return nil
}

// ValidateChangelogTable checks that the changelog table exists.
func (p *PreflightChecker) ValidateChangelogTable(ctx context.Context, table string) error {
	p.logger.Debug("Checking changelog table...")

	changelog := ChangelogTable(table)
	exists, err := p.tableExists(ctx, changelog)
	if err != nil {
		return fmt.Errorf("failed to query changelog table: %w", err)
	}
	if !exists {
		return &PreflightError{
			Check:   "CHANGELOG_TABLE_CHECK",
			Message: "Changelog table not found. Run provision first",
			Tables:  []string{changelog},
		}
	}

	p.logger.Debug("Changelog table check PASSED")
	return nil
}

// ValidateJobTable checks that the delete-job bookkeeping table exists.
func (p *PreflightChecker) ValidateJobTable(ctx context.Context) error {
	p.logger.Debug("Checking job table...")

	exists, err := p.tableExists(ctx, "gobulk_jobs")
	if err != nil {
		return fmt.Errorf("failed to query job table: %w", err)
	}
	if !exists {
		return &PreflightError{
			Check:   "JOB_TABLE_CHECK",
			Message: "Job table not found. Run provision first",
			Tables:  []string{"gobulk_jobs"},
		}
	}

	p.logger.Debug("Job table check PASSED")
	return nil
}

func (p *PreflightChecker) tableExists(ctx context.Context, table string) (bool, error) {
	const query = `
		SELECT COUNT(*)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?`

	var count int
	if err := p.db.QueryRowContext(ctx, query, p.dbName, table).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetLogger sets a custom logger for the preflight checker.
func (p *PreflightChecker) SetLogger(log *logger.Logger) {
	p.logger = log
}
