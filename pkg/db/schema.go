// Package db provides the SQLite archive of saved variance reports.
package db

// Schema defines the SQL statements to create database tables.
// Amounts are stored as decimal strings so that archived reports round-trip exactly.
const Schema = `
-- Saved variance reports
CREATE TABLE IF NOT EXISTS reports (
    id TEXT PRIMARY KEY,                  -- UUID
    label TEXT NOT NULL,
    principal TEXT NOT NULL DEFAULT '',   -- opaque identifier of whoever saved it
    current_source TEXT NOT NULL,
    prior_source TEXT NOT NULL,
    policy TEXT NOT NULL,                 -- 'percent_only' or 'percent_or_absolute'
    threshold_percent TEXT NOT NULL,
    absolute_threshold TEXT,              -- NULL when disabled
    account_count INTEGER NOT NULL,
    flagged_count INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_created
    ON reports(created_at);

-- Reconciled rows of a saved report, in display order
CREATE TABLE IF NOT EXISTS report_rows (
    report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    account_code TEXT NOT NULL,
    account_name TEXT NOT NULL,
    account_name_current TEXT NOT NULL,
    account_name_prior TEXT NOT NULL,
    in_current INTEGER NOT NULL,
    in_prior INTEGER NOT NULL,
    balance_current TEXT NOT NULL,
    balance_prior TEXT NOT NULL,
    variance_amount TEXT NOT NULL,
    variance_percent TEXT,                -- NULL when undefined
    flagged INTEGER NOT NULL,
    PRIMARY KEY (report_id, position)
);

-- Archive metadata
-- Stores key-value metadata such as the last saved report
CREATE TABLE IF NOT EXISTS archive_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}
