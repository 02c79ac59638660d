package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the cost ledger schema.
const Schema = `
-- Cost ledger: one row per (subject, account, resource, day)
CREATE TABLE IF NOT EXISTS cost_records (
    subject_id TEXT NOT NULL,
    account_id TEXT NOT NULL,
    resource_id TEXT NOT NULL,
    service TEXT NOT NULL,
    usage_date TIMESTAMP NOT NULL,

    -- Monetary fields stored as decimal strings to avoid float drift
    amount TEXT NOT NULL,
    currency TEXT NOT NULL,

    -- Metered usage, optional
    usage_quantity TEXT,
    usage_unit TEXT,

    -- Provenance
    source TEXT NOT NULL,

    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,

    PRIMARY KEY (subject_id, account_id, resource_id, usage_date)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS ledger_schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_cost_records_subject_date ON cost_records(subject_id, usage_date);
CREATE INDEX IF NOT EXISTS idx_cost_records_usage_date ON cost_records(usage_date);
CREATE INDEX IF NOT EXISTS idx_cost_records_service ON cost_records(service);
`

// MergeQuery upserts a cost record, preserving created_at on conflict.
const MergeQuery = `
INSERT INTO cost_records (
    subject_id, account_id, resource_id, service, usage_date,
    amount, currency, usage_quantity, usage_unit, source,
    created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(subject_id, account_id, resource_id, usage_date) DO UPDATE SET
    service = excluded.service,
    amount = excluded.amount,
    currency = excluded.currency,
    usage_quantity = excluded.usage_quantity,
    usage_unit = excluded.usage_unit,
    source = excluded.source,
    updated_at = excluded.updated_at;
`

// InsertSchemaVersion inserts the schema version into the version table.
const InsertSchemaVersion = `
INSERT INTO ledger_schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM ledger_schema_version ORDER BY version DESC LIMIT 1;
`
