package policy

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

// policySchema creates the budget policy table. The (subject, created_at)
// index is the lookup path for active-policy resolution.
const policySchema = `
CREATE TABLE IF NOT EXISTS budget_policies (
    id TEXT PRIMARY KEY,
    subject_id TEXT NOT NULL,
    monthly_limit TEXT NOT NULL,
    currency TEXT NOT NULL,
    alert_threshold REAL NOT NULL,
    alerts_enabled BOOLEAN NOT NULL,
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP,
    last_alert_at TIMESTAMP,
    created_by TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_budget_policies_subject_created
    ON budget_policies(subject_id, created_at);
`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	ownsDB bool
	logger *slog.Logger
}

// NewSQLiteStore creates a policy store on its own database file.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	store, err := newSQLiteStore(db, true)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStoreFromDB wraps an existing database handle, applying the
// policy schema. Used when all stores share one database file.
func NewSQLiteStoreFromDB(db *sql.DB) (*SQLiteStore, error) {
	return newSQLiteStore(db, false)
}

func newSQLiteStore(db *sql.DB, ownsDB bool) (*SQLiteStore, error) {
	if _, err := db.Exec(policySchema); err != nil {
		return nil, NewStorageError("sqlite", "create_schema", err)
	}
	return &SQLiteStore{
		db:     db,
		ownsDB: ownsDB,
		logger: slog.Default().With("component", "policy.sqlite"),
	}, nil
}

// Create validates and persists a new policy.
func (s *SQLiteStore) Create(ctx context.Context, p *Policy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.AlertThreshold == 0 {
		p.AlertThreshold = DefaultAlertThreshold
	}
	if err := p.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budget_policies (
			id, subject_id, monthly_limit, currency, alert_threshold,
			alerts_enabled, start_date, end_date, last_alert_at,
			created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SubjectID, p.MonthlyLimit.String(), p.Currency, p.AlertThreshold,
		p.AlertsEnabled, p.StartDate.UTC(), nullTime(p.EndDate), nullTime(p.LastAlertAt),
		p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return NewStorageError("sqlite", "create", err)
	}

	s.logger.Info("budget policy created",
		"policy_id", p.ID,
		"subject_id", p.SubjectID,
		"monthly_limit", p.MonthlyLimit.String(),
	)
	return nil
}

// Update applies a partial update and returns the updated policy.
func (s *SQLiteStore) Update(ctx context.Context, id string, patch *Patch) (*Policy, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch.apply(p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE budget_policies SET
			monthly_limit = ?, currency = ?, alert_threshold = ?,
			alerts_enabled = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		p.MonthlyLimit.String(), p.Currency, p.AlertThreshold,
		p.AlertsEnabled, p.StartDate.UTC(), nullTime(p.EndDate), p.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "update", err)
	}

	return p, nil
}

// Delete removes a policy by id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM budget_policies WHERE id = ?", id)
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

const policyColumns = `
	id, subject_id, monthly_limit, currency, alert_threshold,
	alerts_enabled, start_date, end_date, last_alert_at,
	created_by, created_at, updated_at`

// Get returns a policy by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Policy, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+policyColumns+" FROM budget_policies WHERE id = ?", id)

	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get", err)
	}
	return p, nil
}

// Active returns the most recently created policy whose validity window
// covers t, or (nil, nil) when the subject has none.
func (s *SQLiteStore) Active(ctx context.Context, subjectID string, t time.Time) (*Policy, error) {
	t = t.UTC()
	row := s.db.QueryRowContext(ctx,
		"SELECT"+policyColumns+` FROM budget_policies
		WHERE subject_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY created_at DESC LIMIT 1`,
		subjectID, t, t)

	p, err := scanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "active", err)
	}
	return p, nil
}

// List returns all of the subject's policies, newest first.
func (s *SQLiteStore) List(ctx context.Context, subjectID string) ([]*Policy, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT"+policyColumns+` FROM budget_policies
		WHERE subject_id = ? ORDER BY created_at DESC`, subjectID)
	if err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	policies := []*Policy{}
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list", err)
	}
	return policies, nil
}

// SubjectsWithAlerts returns subjects with at least one enabled policy
// active at t.
func (s *SQLiteStore) SubjectsWithAlerts(ctx context.Context, t time.Time) ([]string, error) {
	t = t.UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT subject_id FROM budget_policies
		WHERE alerts_enabled = 1 AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY subject_id`, t, t)
	if err != nil {
		return nil, NewStorageError("sqlite", "subjects_with_alerts", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		subjects = append(subjects, id)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "subjects_with_alerts", err)
	}
	return subjects, nil
}

// SetLastAlert records when an alert was last successfully sent.
func (s *SQLiteStore) SetLastAlert(ctx context.Context, id string, t time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE budget_policies SET last_alert_at = ? WHERE id = ?", t.UTC(), id)
	if err != nil {
		return NewStorageError("sqlite", "set_last_alert", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return NewStorageError("sqlite", "set_last_alert", err)
	}
	if affected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
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

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPolicy(row scanner) (*Policy, error) {
	var p Policy
	var limit string
	var endDate, lastAlert sql.NullTime
	var createdBy sql.NullString

	err := row.Scan(
		&p.ID, &p.SubjectID, &limit, &p.Currency, &p.AlertThreshold,
		&p.AlertsEnabled, &p.StartDate, &endDate, &lastAlert,
		&createdBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.MonthlyLimit, err = decimal.NewFromString(limit)
	if err != nil {
		return nil, fmt.Errorf("malformed monthly limit %q: %w", limit, err)
	}
	if endDate.Valid {
		t := endDate.Time
		p.EndDate = &t
	}
	if lastAlert.Valid {
		t := lastAlert.Time
		p.LastAlertAt = &t
	}
	if createdBy.Valid {
		p.CreatedBy = createdBy.String
	}

	return &p, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
