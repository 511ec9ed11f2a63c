package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dbsmedya/gobulk/internal/sqlutil"
)

// elasticPartitions is the partition count for set-based tables.
const elasticPartitions = 8

// TableSpec describes a target table to provision.
type TableSpec struct {
	Name    string
	Columns []string
	// Elastic selects the set-based layout: hash-partitioned on id so bulk
	// deletes spread across partitions. Conventional tables are plain InnoDB.
	Elastic bool
}

// ChangelogTable returns the name of the changelog table paired with table.
func ChangelogTable(table string) string {
	return table + "_changelog"
}

// CreateTable provisions the target table, its changelog table, and the
// shared job table. Idempotent and safe to call on every run.
func (s *MySQLStore) CreateTable(ctx context.Context, spec TableSpec) error {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(spec.Name)
	if err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}

	columns := make([]string, 0, len(spec.Columns)+2)
	columns = append(columns, fmt.Sprintf("%s CHAR(36) NOT NULL", sqlutil.QuoteIdentifier("id")))
	for _, col := range spec.Columns {
		quoted, err := sqlutil.QuoteIdentifierSafe(col)
		if err != nil {
			return fmt.Errorf("invalid column name: %w", err)
		}
		columns = append(columns, fmt.Sprintf("%s VARCHAR(255) NOT NULL DEFAULT ''", quoted))
	}
	columns = append(columns, fmt.Sprintf("PRIMARY KEY (%s)", sqlutil.QuoteIdentifier("id")))

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE=InnoDB",
		quotedTable, strings.Join(columns, ",\n\t"))
	if spec.Elastic {
		ddl += fmt.Sprintf("\nPARTITION BY KEY (%s) PARTITIONS %d",
			sqlutil.QuoteIdentifier("id"), elasticPartitions)
	}

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", spec.Name, err)
	}
	s.logger.Debugf("Table %s ready (elastic=%v)", spec.Name, spec.Elastic)

	if err := s.createChangelogTable(ctx, spec.Name); err != nil {
		return err
	}
	return s.ensureJobTable(ctx)
}

// createChangelogTable provisions the audit table paired with table.
func (s *MySQLStore) createChangelogTable(ctx context.Context, table string) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	record_id CHAR(36) NOT NULL,
	op VARCHAR(16) NOT NULL,
	tag VARCHAR(255) NOT NULL DEFAULT '',
	occurred_at TIMESTAMP(6) DEFAULT CURRENT_TIMESTAMP(6),
	INDEX idx_record (record_id),
	INDEX idx_occurred (occurred_at)
) ENGINE=InnoDB;
`, sqlutil.QuoteIdentifier(ChangelogTable(table)))

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create changelog table for %s: %w", table, err)
	}
	return nil
}

// DropTable removes the target table and its changelog table. Missing
// tables are not an error.
func (s *MySQLStore) DropTable(ctx context.Context, table string) error {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quotedTable)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	changelog := sqlutil.QuoteIdentifier(ChangelogTable(table))
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", changelog)); err != nil {
		return fmt.Errorf("failed to drop changelog table for %s: %w", table, err)
	}

	s.logger.Debugf("Dropped table %s and its changelog", table)
	return nil
}

// TableExists reports whether table exists in the configured schema.
func (s *MySQLStore) TableExists(ctx context.Context, table string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`

	var count int
	if err := s.db.QueryRowContext(ctx, query, s.Database(), table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// CountRows returns the number of rows in table.
func (s *MySQLStore) CountRows(ctx context.Context, table string) (int64, error) {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return 0, fmt.Errorf("invalid table name: %w", err)
	}

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// ListIDs returns every record id in table, ordered by id.
func (s *MySQLStore) ListIDs(ctx context.Context, table string) ([]string, error) {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	quotedID := sqlutil.QuoteIdentifier("id")
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", quotedID, quotedTable, quotedID)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list ids in %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id from %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
