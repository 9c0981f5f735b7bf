package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcus/triage/internal/logging"
)

// Migration represents a single schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: triage_runs",
		SQL:         migration001SQL,
	},
	{
		Version:     2,
		Description: "add triggered_by column to triage_runs",
		SQL:         migration002SQL,
	},
}

const migration001SQL = `
CREATE TABLE triage_runs (
    id                   TEXT PRIMARY KEY,
    started_at           DATETIME NOT NULL,
    duration_ms          INTEGER NOT NULL DEFAULT 0,
    provider             TEXT NOT NULL DEFAULT '',
    model                TEXT NOT NULL DEFAULT '',
    task_count           INTEGER NOT NULL DEFAULT 0,
    batch_count          INTEGER NOT NULL DEFAULT 0,
    recommendation_count INTEGER NOT NULL DEFAULT 0,
    status               TEXT NOT NULL,
    error                TEXT
);

CREATE INDEX idx_triage_runs_time ON triage_runs(started_at DESC);
`

const migration002SQL = `
ALTER TABLE triage_runs ADD COLUMN triggered_by TEXT NOT NULL DEFAULT '';
`

// Migrate runs all pending migrations inside transactions.
func Migrate(db *sql.DB) error {
	if db == nil {
		return errors.New("db is nil")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at DATETIME)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	currentVersion, err := CurrentVersion(db)
	if err != nil {
		return err
	}

	logger := logging.Component("db")
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, migration.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}

		logger.DebugCtx("applied migration", map[string]any{
			"version":     migration.Version,
			"description": migration.Description,
		})
		currentVersion = migration.Version
	}

	return nil
}

// CurrentVersion returns the current schema version (0 if no migrations applied).
func CurrentVersion(db *sql.DB) (int, error) {
	if db == nil {
		return 0, errors.New("db is nil")
	}

	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema_version: %w", err)
	}
	return version, nil
}
