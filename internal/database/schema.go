package database

import "github.com/jmoiron/sqlx"

// schemaStatements mirrors the SQL under migrations/ in portable DDL. MySQL
// deployments migrate via golang-migrate; the sqlite3 driver (local runs and
// tests) applies this directly.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS batches (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(64) NOT NULL,
		period VARCHAR(7) NOT NULL,
		workflow VARCHAR(8) NOT NULL,
		side VARCHAR(16) NOT NULL,
		file_name VARCHAR(255) NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		line_item_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_scope
		ON batches (company_id, period, workflow, side)`,
	`CREATE TABLE IF NOT EXISTS line_items (
		id VARCHAR(36) PRIMARY KEY,
		batch_id VARCHAR(36) NOT NULL,
		company_id VARCHAR(64) NOT NULL,
		period VARCHAR(7) NOT NULL,
		workflow VARCHAR(8) NOT NULL,
		side VARCHAR(16) NOT NULL,
		txn_date VARCHAR(10) NOT NULL,
		description VARCHAR(512) NOT NULL DEFAULT '',
		amount DECIMAL(18,2) NOT NULL,
		balance DECIMAL(18,2),
		currency VARCHAR(3) NOT NULL DEFAULT '',
		source_batch_name VARCHAR(255) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_scope
		ON line_items (company_id, period, workflow, side)`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_batch
		ON line_items (batch_id)`,
	`CREATE TABLE IF NOT EXISTS reconciliation_records (
		id VARCHAR(36) PRIMARY KEY,
		company_id VARCHAR(64) NOT NULL,
		period VARCHAR(7) NOT NULL,
		workflow VARCHAR(8) NOT NULL,
		result TEXT NOT NULL,
		locked BOOLEAN NOT NULL DEFAULT FALSE,
		locked_at TIMESTAMP,
		unlocked_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (company_id, period, workflow)
	)`,
	`CREATE TABLE IF NOT EXISTS month_close_locks (
		company_id VARCHAR(64) NOT NULL,
		period VARCHAR(7) NOT NULL,
		is_locked BOOLEAN NOT NULL DEFAULT FALSE,
		locked_at TIMESTAMP,
		PRIMARY KEY (company_id, period)
	)`,
}

// ApplySchema creates all tables if they do not exist.
func ApplySchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
