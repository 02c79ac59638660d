package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"mercator-hq/callisto/pkg/ledger"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/callisto.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteBackend implements the Backend interface using SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config *SQLiteConfig
	ownsDB bool
	logger *slog.Logger
}

// NewSQLiteBackend creates a new SQLite ledger backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteBackend(config *SQLiteConfig) (*SQLiteBackend, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "ledger.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteBackend{
		db:     db,
		config: config,
		ownsDB: true,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger backend initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// NewSQLiteBackendFromDB wraps an existing database handle. The handle is
// expected to be configured already; the ledger schema is still applied.
// Used when the ledger, policy, and alert stores share one database file.
func NewSQLiteBackendFromDB(db *sql.DB) (*SQLiteBackend, error) {
	s := &SQLiteBackend{
		db:     db,
		config: &SQLiteConfig{WALMode: false},
		logger: slog.Default().With("component", "ledger.storage.sqlite"),
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteBackend) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return ledger.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if s.config.BusyTimeout > 0 {
		_, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds()))
		if err != nil {
			return ledger.NewStorageError("sqlite", "set_busy_timeout", err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return ledger.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return ledger.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return ledger.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return ledger.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Merge upserts a single cost record by its unique key.
func (s *SQLiteBackend) Merge(ctx context.Context, record *ledger.CostRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := s.merge(ctx, record, now); err != nil {
		return ledger.NewStorageError("sqlite", "merge", err)
	}
	return nil
}

// merge executes the upsert without validation. Caller validates.
func (s *SQLiteBackend) merge(ctx context.Context, record *ledger.CostRecord, now time.Time) error {
	var quantity interface{}
	if record.UsageQuantity.Valid {
		quantity = record.UsageQuantity.Decimal.String()
	}

	_, err := s.db.ExecContext(ctx, MergeQuery,
		record.SubjectID, record.AccountID, record.ResourceID, record.Service,
		ledger.TruncateDay(record.UsageDate),
		record.Amount.String(), record.Currency,
		quantity, record.UsageUnit, record.Source,
		now, now,
	)
	return err
}

// MergeBatch applies many merges inside one transaction. Duplicate keys
// within the batch collapse to the last value; malformed records are
// rejected per-record without aborting the rest.
func (s *SQLiteBackend) MergeBatch(ctx context.Context, records []*ledger.CostRecord) (*ledger.BatchResult, error) {
	result := &ledger.BatchResult{}

	// Collapse duplicates, last value wins. Order of first appearance is
	// kept so rejections report the caller's indexes.
	collapsed := make(map[string]*ledger.CostRecord, len(records))
	var order []string
	for i, record := range records {
		if err := record.Validate(); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, ledger.RecordError{Index: i, Err: err})
			continue
		}
		key := record.Key()
		if _, seen := collapsed[key]; !seen {
			order = append(order, key)
		}
		collapsed[key] = record
	}

	if len(collapsed) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, ledger.NewStorageError("sqlite", "merge_batch", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, MergeQuery)
	if err != nil {
		return result, ledger.NewStorageError("sqlite", "merge_batch", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, key := range order {
		record := collapsed[key]
		var quantity interface{}
		if record.UsageQuantity.Valid {
			quantity = record.UsageQuantity.Decimal.String()
		}
		_, err := stmt.ExecContext(ctx,
			record.SubjectID, record.AccountID, record.ResourceID, record.Service,
			ledger.TruncateDay(record.UsageDate),
			record.Amount.String(), record.Currency,
			quantity, record.UsageUnit, record.Source,
			now, now,
		)
		if err != nil {
			return result, ledger.NewStorageError("sqlite", "merge_batch", err)
		}
		result.Written++
	}

	if err := tx.Commit(); err != nil {
		result.Written = 0
		return result, ledger.NewStorageError("sqlite", "merge_batch", err)
	}

	return result, nil
}

// QueryRange returns the subject's records with from <= usage date < to.
func (s *SQLiteBackend) QueryRange(ctx context.Context, subjectID string, from, to time.Time) ([]*ledger.CostRecord, error) {
	query := `
		SELECT subject_id, account_id, resource_id, service, usage_date,
		       amount, currency, usage_quantity, usage_unit, source,
		       created_at, updated_at
		FROM cost_records
		WHERE subject_id = ? AND usage_date >= ? AND usage_date < ?
		ORDER BY usage_date ASC, service ASC, resource_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, subjectID, ledger.TruncateDay(from), ledger.TruncateDay(to))
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "query_range", err)
	}
	defer rows.Close()

	records := []*ledger.CostRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, ledger.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStorageError("sqlite", "query_range", err)
	}

	return records, nil
}

// Subjects returns the distinct subject ids present in the ledger.
func (s *SQLiteBackend) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT subject_id FROM cost_records ORDER BY subject_id")
	if err != nil {
		return nil, ledger.NewStorageError("sqlite", "subjects", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ledger.NewStorageError("sqlite", "scan", err)
		}
		subjects = append(subjects, id)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewStorageError("sqlite", "subjects", err)
	}

	return subjects, nil
}

// PurgeOlderThan deletes records with a usage date strictly before cutoff.
func (s *SQLiteBackend) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM cost_records WHERE usage_date < ?", ledger.TruncateDay(cutoff))
	if err != nil {
		return 0, ledger.NewStorageError("sqlite", "purge", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, ledger.NewStorageError("sqlite", "purge", err)
	}

	return deleted, nil
}

// Close releases the database connection when this backend owns it.
func (s *SQLiteBackend) Close() error {
	if !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return ledger.NewStorageError("sqlite", "close", err)
	}
	return nil
}

// scanRecord scans a database row into a CostRecord.
func scanRecord(rows *sql.Rows) (*ledger.CostRecord, error) {
	var record ledger.CostRecord
	var amount string
	var quantity, unit sql.NullString

	err := rows.Scan(
		&record.SubjectID, &record.AccountID, &record.ResourceID, &record.Service,
		&record.UsageDate,
		&amount, &record.Currency,
		&quantity, &unit, &record.Source,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q: %w", amount, err)
	}

	if quantity.Valid {
		q, err := decimal.NewFromString(quantity.String)
		if err != nil {
			return nil, fmt.Errorf("malformed usage quantity %q: %w", quantity.String, err)
		}
		record.UsageQuantity = decimal.NewNullDecimal(q)
	}
	if unit.Valid {
		record.UsageUnit = unit.String
	}

	return &record, nil
}
