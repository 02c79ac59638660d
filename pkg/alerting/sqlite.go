package alerting

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// alertSchema creates the alert event table. The (subject, policy, kind,
// created_at) index is the dedup lookup path.
const alertSchema = `
CREATE TABLE IF NOT EXISTS alert_events (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    policy_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    severity TEXT NOT NULL,
    percent_used REAL NOT NULL,
    amount_spent TEXT NOT NULL,
    limit_amount TEXT NOT NULL,
    message TEXT NOT NULL,
    delivery_status TEXT NOT NULL,
    delivered_at TIMESTAMP,
    failure_reason TEXT,
    detail_type TEXT,
    detail TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_events_dedup
    ON alert_events(subject_id, policy_id, kind, created_at);
CREATE INDEX IF NOT EXISTS idx_alert_events_subject
    ON alert_events(subject_id, created_at);
CREATE INDEX IF NOT EXISTS idx_alert_events_created
    ON alert_events(created_at);
`

// SQLiteStore implements the alert ledger using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config StoreConfig
	ownsDB bool
	logger *slog.Logger
}

// NewSQLiteStore creates an alert ledger on its own database file.
func NewSQLiteStore(path string, config StoreConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	store, err := newSQLiteStore(db, config, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle, applying the
// alert schema. Used when all stores share one database file.
func NewSQLiteStoreFromDB(db *sql.DB, config StoreConfig) (*SQLiteStore, error) {
	return newSQLiteStore(db, config, false)
}

func newSQLiteStore(db *sql.DB, config StoreConfig, ownsDB bool) (*SQLiteStore, error) {
	if _, err := db.Exec(alertSchema); err != nil {
		return nil, NewStorageError("sqlite", "create_schema", err)
	}
	return &SQLiteStore{
		db:     db,
		config: config.withDefaults(),
		ownsDB: ownsDB,
		logger: slog.Default().With("component", "alerting.sqlite"),
	}, nil
}

// Claim atomically checks the cooldown and records the event when clear.
//
// The check and the insert run inside one BEGIN IMMEDIATE transaction on a
// dedicated connection. SQLite serializes writers, so two concurrent
// sweeps cannot both observe a clear slot and both insert.
func (s *SQLiteStore) Claim(ctx context.Context, event *Event) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.Status == "" {
		event.Status = StatusPending
	}

	detailType, detailPayload, err := marshalDetail(event.Detail)
	if err != nil {
		return false, NewStorageError("sqlite", "claim", err)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return false, NewStorageError("sqlite", "claim", err)
	}
	defer conn.Close()

	// BEGIN IMMEDIATE takes the write lock up front, making the
	// check-and-insert below a single serializable unit.
	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return false, NewStorageError("sqlite", "claim_begin", err)
	}

	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, "ROLLBACK")
		}
	}()

	sentCutoff := event.CreatedAt.Add(-s.config.Cooldown)
	pendingCutoff := event.CreatedAt.Add(-s.config.ClaimTTL)

	var held int
	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM alert_events
		WHERE subject_id = ? AND policy_id = ? AND kind = ?
		  AND (
		    (delivery_status = ? AND created_at > ?)
		    OR (delivery_status = ? AND created_at > ?)
		  )`,
		event.SubjectID, event.PolicyID, string(event.Kind),
		string(StatusSent), sentCutoff,
		string(StatusPending), pendingCutoff,
	).Scan(&held)
	if err != nil {
		return false, NewStorageError("sqlite", "claim_check", err)
	}

	if held > 0 {
		return false, nil
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO alert_events (
			id, subject_id, policy_id, kind, severity, percent_used,
			amount_spent, limit_amount, message, delivery_status,
			delivered_at, failure_reason, detail_type, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?)`,
		event.ID, event.SubjectID, event.PolicyID, string(event.Kind),
		string(event.Severity), event.PercentUsed,
		event.AmountSpent.String(), event.LimitAmount.String(),
		event.Message, string(event.Status),
		nullString(detailType), nullBytes(detailPayload), event.CreatedAt,
	)
	if err != nil {
		return false, NewStorageError("sqlite", "claim_insert", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return false, NewStorageError("sqlite", "claim_commit", err)
	}
	committed = true

	return true, nil
}

// Resolve records the delivery outcome of a claimed event.
func (s *SQLiteStore) Resolve(ctx context.Context, id string, succeeded bool, deliveredAt time.Time, failureReason string) error {
	var err error
	if succeeded {
		_, err = s.db.ExecContext(ctx, `
			UPDATE alert_events
			SET delivery_status = ?, delivered_at = ?
			WHERE id = ?`,
			string(StatusSent), deliveredAt.UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE alert_events
			SET delivery_status = ?, failure_reason = ?
			WHERE id = ?`,
			string(StatusFailed), failureReason, id)
	}
	if err != nil {
		return NewStorageError("sqlite", "resolve", err)
	}
	return nil
}

const eventColumns = `
	id, subject_id, policy_id, kind, severity, percent_used,
	amount_spent, limit_amount, message, delivery_status,
	delivered_at, failure_reason, detail_type, detail, created_at`

// HistoryBySubject returns the subject's events, newest first.
func (s *SQLiteStore) HistoryBySubject(ctx context.Context, subjectID string, limit int) ([]*Event, error) {
	return s.history(ctx, "subject_id", subjectID, limit)
}

// HistoryByPolicy returns the policy's events, newest first.
func (s *SQLiteStore) HistoryByPolicy(ctx context.Context, policyID string, limit int) ([]*Event, error) {
	return s.history(ctx, "policy_id", policyID, limit)
}

func (s *SQLiteStore) history(ctx context.Context, column, value string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(
		"SELECT"+eventColumns+" FROM alert_events WHERE %s = ? ORDER BY created_at DESC LIMIT ?",
		column)

	rows, err := s.db.QueryContext(ctx, query, value, limit)
	if err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "history", err)
	}
	return events, nil
}

// PurgeOlderThan deletes events created strictly before the cutoff.
func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM alert_events WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, NewStorageError("sqlite", "purge", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStorageError("sqlite", "purge", err)
	}
	return deleted, nil
}

// Close releases the database connection when this store owns it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var spent, limit string
	var deliveredAt sql.NullTime
	var failureReason, detailType sql.NullString
	var detailPayload []byte

	err := rows.Scan(
		&event.ID, &event.SubjectID, &event.PolicyID,
		(*string)(&event.Kind), (*string)(&event.Severity), &event.PercentUsed,
		&spent, &limit, &event.Message, (*string)(&event.Status),
		&deliveredAt, &failureReason, &detailType, &detailPayload, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	event.AmountSpent, err = decimal.NewFromString(spent)
	if err != nil {
		return nil, fmt.Errorf("malformed amount %q: %w", spent, err)
	}
	event.LimitAmount, err = decimal.NewFromString(limit)
	if err != nil {
		return nil, fmt.Errorf("malformed limit %q: %w", limit, err)
	}

	if deliveredAt.Valid {
		t := deliveredAt.Time
		event.DeliveredAt = &t
	}
	if failureReason.Valid {
		event.FailureReason = failureReason.String
	}

	if detailType.Valid {
		event.Detail, err = unmarshalDetail(detailType.String, detailPayload)
		if err != nil {
			return nil, err
		}
	}

	return &event, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
