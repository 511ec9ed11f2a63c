package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/google/uuid"

	"github.com/dbsmedya/gobulk/internal/config"
	"github.com/dbsmedya/gobulk/internal/logger"
	"github.com/dbsmedya/gobulk/internal/record"
	"github.com/dbsmedya/gobulk/internal/sqlutil"
)

const (
	defaultDeleteBatchSize        = 500
	defaultRecommendedParallelism = 4
	defaultPollInterval           = 500 * time.Millisecond
	defaultPollTimeout            = 5 * time.Minute
)

// Changelog op values.
const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// MySQLStore is the MySQL implementation of Store.
type MySQLStore struct {
	db     *sql.DB
	cfg    *config.StoreConfig
	logger *logger.Logger

	elastic         bool
	bypassChangelog bool
	deleteBatchSize int
	pollInterval    time.Duration
	pollTimeout     time.Duration

	recommended int

	jobs sync.WaitGroup
}

var _ Store = (*MySQLStore)(nil)

// Option adjusts store behavior at construction time.
type Option func(*MySQLStore)

// WithElastic marks the store's target tables as using the set-based layout.
func WithElastic(elastic bool) Option {
	return func(s *MySQLStore) {
		s.elastic = elastic
	}
}

// WithDeleteBatchSize sets how many ids each DELETE statement covers.
func WithDeleteBatchSize(n int) Option {
	return func(s *MySQLStore) {
		if n > 0 {
			s.deleteBatchSize = n
		}
	}
}

// WithPollInterval sets the delay between delete-job status probes.
func WithPollInterval(d time.Duration) Option {
	return func(s *MySQLStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithPollTimeout sets the total budget for polling a delete job.
func WithPollTimeout(d time.Duration) Option {
	return func(s *MySQLStore) {
		if d > 0 {
			s.pollTimeout = d
		}
	}
}

// Connect establishes a connection to the store with retry and negotiates
// the recommended parallelism. A connection that cannot be established
// within the retry budget fails with *ConnectionError.
func Connect(ctx context.Context, cfg *config.StoreConfig, log *logger.Logger, opts ...Option) (*MySQLStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store config is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	db, err := connectWithRetry(ctx, cfg)
	if err != nil {
		return nil, &ConnectionError{
			Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Err:  err,
		}
	}

	s := NewWithDB(db, cfg, log, opts...)
	s.recommended = s.negotiateParallelism(ctx)
	log.Debugf("Connected to %s:%d/%s (recommended parallelism %d)",
		cfg.Host, cfg.Port, cfg.Database, s.recommended)
	return s, nil
}

// NewWithDB wraps an existing connection pool. The recommended parallelism
// is not negotiated; it defaults from the configured connection limit.
func NewWithDB(db *sql.DB, cfg *config.StoreConfig, log *logger.Logger, opts ...Option) *MySQLStore {
	if log == nil {
		log = logger.NewDefault()
	}

	s := &MySQLStore{
		db:              db,
		cfg:             cfg,
		logger:          log,
		deleteBatchSize: defaultDeleteBatchSize,
		pollInterval:    defaultPollInterval,
		pollTimeout:     defaultPollTimeout,
		recommended:     defaultRecommendedParallelism,
	}
	if cfg != nil {
		s.bypassChangelog = cfg.BypassChangelog
		if cfg.MaxConnections > 0 && cfg.MaxConnections < s.recommended {
			s.recommended = cfg.MaxConnections
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// connectWithRetry attempts to connect with exponential backoff.
func connectWithRetry(ctx context.Context, cfg *config.StoreConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = connect(cfg)
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

// connect creates a database connection.
func connect(cfg *config.StoreConfig) (*sql.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.StoreConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	// clientFoundRows makes RowsAffected count matched rows, so an update
	// that rewrites a record with identical values still reports the row.
	params := "?parseTime=true&multiStatements=true&clientFoundRows=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// negotiateParallelism derives the recommended worker count from the
// server's connection capacity, leaving headroom for other clients.
func (s *MySQLStore) negotiateParallelism(ctx context.Context) int {
	var maxConns int
	if err := s.db.QueryRowContext(ctx, "SELECT @@max_connections").Scan(&maxConns); err != nil {
		s.logger.Warnf("Could not read max_connections, assuming parallelism %d: %v",
			defaultRecommendedParallelism, err)
		return defaultRecommendedParallelism
	}

	rec := maxConns / 4
	if rec < 1 {
		rec = 1
	}
	if s.cfg != nil && s.cfg.MaxConnections > 0 && rec > s.cfg.MaxConnections {
		rec = s.cfg.MaxConnections
	}
	return rec
}

// RecommendedParallelism reports the concurrency negotiated at connect time.
func (s *MySQLStore) RecommendedParallelism() int {
	return s.recommended
}

// Elastic reports whether target tables use the set-based layout.
func (s *MySQLStore) Elastic() bool {
	return s.elastic
}

// DB exposes the underlying pool for collaborators that issue their own
// statements (locking, verification).
func (s *MySQLStore) DB() *sql.DB {
	return s.db
}

// Database returns the configured schema name.
func (s *MySQLStore) Database() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.Database
}

// Create persists rec into table under a fresh server-assigned id and
// returns that id.
func (s *MySQLStore) Create(ctx context.Context, table string, rec *record.Record, hints Hints) (string, error) {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return "", &RemoteError{Op: opCreate, Table: table, Err: err}
	}
	if rec == nil {
		return "", &RemoteError{Op: opCreate, Table: table, Err: fmt.Errorf("record is nil")}
	}

	id := uuid.NewString()
	names := rec.FieldNames()
	columns := make([]string, 0, len(names)+1)
	columns = append(columns, sqlutil.QuoteIdentifier("id"))
	args := make([]interface{}, 0, len(names)+1)
	args = append(args, id)
	for _, name := range names {
		quoted, err := sqlutil.QuoteIdentifierSafe(name)
		if err != nil {
			return "", &RemoteError{Op: opCreate, Table: table, Err: err}
		}
		columns = append(columns, quoted)
		value, _ := rec.Field(name)
		args = append(args, value)
	}

	query := fmt.Sprintf("%sINSERT INTO %s (%s) VALUES (%s)",
		sqlutil.TagComment(hints.Tag), quotedTable,
		strings.Join(columns, ", "), sqlutil.Placeholders(len(args)))

	if s.changelogBypassed(hints) {
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return "", &RemoteError{Op: opCreate, Table: table, Err: err}
		}
		return id, nil
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.changelogInsertQuery(table), id, opCreate, hints.Tag)
		return err
	})
	if err != nil {
		return "", &RemoteError{Op: opCreate, Table: table, Err: err}
	}
	return id, nil
}

// Update rewrites the fields of an existing record. A record whose id
// matches no row fails with ErrRecordMissing.
func (s *MySQLStore) Update(ctx context.Context, table string, rec *record.Record, hints Hints) error {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return &RemoteError{Op: opUpdate, Table: table, Err: err}
	}
	if rec == nil {
		return &RemoteError{Op: opUpdate, Table: table, Err: fmt.Errorf("record is nil")}
	}
	if rec.ID == "" {
		return &RemoteError{Op: opUpdate, Table: table, Err: fmt.Errorf("record has no identifier")}
	}

	names := rec.FieldNames()
	if len(names) == 0 {
		s.logger.Debugf("Update of %s on table %s carries no fields, nothing to do", rec.ID, table)
		return nil
	}

	assignments := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names)+1)
	for _, name := range names {
		quoted, err := sqlutil.QuoteIdentifierSafe(name)
		if err != nil {
			return &RemoteError{Op: opUpdate, Table: table, Err: err}
		}
		assignments = append(assignments, quoted+" = ?")
		value, _ := rec.Field(name)
		args = append(args, value)
	}
	args = append(args, rec.ID)

	query := fmt.Sprintf("%sUPDATE %s SET %s WHERE %s = ?",
		sqlutil.TagComment(hints.Tag), quotedTable,
		strings.Join(assignments, ", "), sqlutil.QuoteIdentifier("id"))

	if s.changelogBypassed(hints) {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return &RemoteError{Op: opUpdate, Table: table, Err: err}
		}
		return s.checkUpdateMatched(result, table, rec.ID)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if err := s.checkUpdateMatched(result, table, rec.ID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.changelogInsertQuery(table), rec.ID, opUpdate, hints.Tag)
		return err
	})
	if err != nil {
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) {
			return err
		}
		return &RemoteError{Op: opUpdate, Table: table, Err: err}
	}
	return nil
}

// checkUpdateMatched turns a zero-row update into an ErrRecordMissing
// failure. The DSN requests found-rows counting, so an update that left
// values unchanged still matches.
func (s *MySQLStore) checkUpdateMatched(result sql.Result, table, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return &RemoteError{Op: opUpdate, Table: table, Err: err}
	}
	if rows == 0 {
		return &RemoteError{Op: opUpdate, Table: table, Err: fmt.Errorf("id %s: %w", id, ErrRecordMissing)}
	}
	return nil
}

// BulkDelete removes the referenced records synchronously, chunking the id
// list into bounded DELETE statements.
func (s *MySQLStore) BulkDelete(ctx context.Context, table string, ids []string, hints Hints) (string, error) {
	if len(ids) == 0 {
		return "completed: 0 rows", nil
	}
	deleted, err := s.deleteInBatches(ctx, table, ids, hints)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("completed: %d rows", deleted), nil
}

// deleteInBatches issues chunked DELETE statements and reports how many
// rows they removed. Shared by the synchronous and asynchronous paths.
func (s *MySQLStore) deleteInBatches(ctx context.Context, table string, ids []string, hints Hints) (int64, error) {
	quotedTable, err := sqlutil.QuoteIdentifierSafe(table)
	if err != nil {
		return 0, &RemoteError{Op: opDelete, Table: table, Err: err}
	}

	batchSize := s.deleteBatchSize
	if batchSize <= 0 {
		batchSize = defaultDeleteBatchSize
	}
	totalBatches := (len(ids) + batchSize - 1) / batchSize

	var deleted int64
	for i := 0; i < totalBatches; i++ {
		if err := ctx.Err(); err != nil {
			return deleted, &RemoteError{Op: opDelete, Table: table, Err: err}
		}

		start := i * batchSize
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]interface{}, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}
		query := fmt.Sprintf("%sDELETE FROM %s WHERE %s IN (%s)",
			sqlutil.TagComment(hints.Tag), quotedTable,
			sqlutil.QuoteIdentifier("id"), sqlutil.Placeholders(len(chunk)))

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, &RemoteError{Op: opDelete, Table: table, Err: err}
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return deleted, &RemoteError{Op: opDelete, Table: table, Err: err}
		}
		deleted += rows

		if rows < int64(len(chunk)) {
			s.logger.Debugf("Delete batch %d/%d on %s removed %d of %d rows",
				i+1, totalBatches, table, rows, len(chunk))
		}

		if !s.changelogBypassed(hints) {
			if err := s.writeDeleteChangelog(ctx, table, chunk, hints); err != nil {
				return deleted, err
			}
		}
	}

	return deleted, nil
}

// writeDeleteChangelog appends one changelog row per deleted id in a single
// multi-row insert.
func (s *MySQLStore) writeDeleteChangelog(ctx context.Context, table string, ids []string, hints Hints) error {
	rows := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)*3)
	for i, id := range ids {
		rows[i] = "(?, ?, ?)"
		args = append(args, id, opDelete, hints.Tag)
	}

	query := fmt.Sprintf("INSERT INTO %s (record_id, op, tag) VALUES %s",
		sqlutil.QuoteIdentifier(ChangelogTable(table)), strings.Join(rows, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &RemoteError{Op: opDelete, Table: table, Err: fmt.Errorf("changelog write: %w", err)}
	}
	return nil
}

// changelogBypassed reports whether changelog writes are skipped for this
// request. Store-level configuration and per-request hints both bypass.
func (s *MySQLStore) changelogBypassed(hints Hints) bool {
	return s.bypassChangelog || hints.BypassChangelog
}

// changelogInsertQuery returns the single-row changelog insert for table.
func (s *MySQLStore) changelogInsertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (record_id, op, tag) VALUES (?, ?, ?)",
		sqlutil.QuoteIdentifier(ChangelogTable(table)))
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *MySQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Debugf("Rollback failed: %v", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil
	return nil
}

// Ping verifies the connection is alive.
func (s *MySQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store is not connected")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}

// Close waits for any background delete jobs to finish, then closes the
// connection pool.
func (s *MySQLStore) Close() error {
	s.jobs.Wait()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
