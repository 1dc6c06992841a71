package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the run store.
const schemaV1 = `
-- One row per program invocation
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    program TEXT NOT NULL,      -- 'cohesion', 'quorum', 'speed-accuracy', 'meanfield'
    params TEXT NOT NULL,       -- JSON
    columns TEXT NOT NULL,      -- space separated column names
    seed TEXT NOT NULL,         -- decimal uint64
    rng TEXT NOT NULL,
    trials INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running',  -- 'running', 'done', 'failed'
    started_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

-- Output records, in emission order
CREATE TABLE IF NOT EXISTS run_rows (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    block INTEGER NOT NULL DEFAULT 0,
    dummy INTEGER NOT NULL DEFAULT 0,
    vals TEXT NOT NULL          -- space separated %g values
);
CREATE INDEX IF NOT EXISTS idx_run_rows_run ON run_rows(run_id, seq);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the schema on a fresh database and validates an
// existing one before applying migrations.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// No schema_version table yet
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}
	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

func getSchemaVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	if err := db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_version`); err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema brings a database at currentVersion up to SchemaVersion.
// Only version 1 exists so far.
func migrateSchema(ctx context.Context, db *sqlx.DB, currentVersion int) error {
	_, _, _ = ctx, db, currentVersion
	return nil
}

// ValidateIntegrity runs PRAGMA integrity_check and PRAGMA
// foreign_key_check and reports the first problem found.
func ValidateIntegrity(ctx context.Context, db *sqlx.DB) error {
	var results []string
	if err := db.SelectContext(ctx, &results, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("failed to run integrity_check: %w", err)
	}
	for _, r := range results {
		if r != "ok" {
			return fmt.Errorf("integrity_check failed: %s", r)
		}
	}

	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("failed to run foreign_key_check: %w", err)
	}
	defer rows.Close()

	var fkErrors []string
	for rows.Next() {
		var table, rowid, parent, fkid string
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("failed to scan foreign_key_check result: %w", err)
		}
		fkErrors = append(fkErrors, fmt.Sprintf("table=%s rowid=%s parent=%s fkid=%s", table, rowid, parent, fkid))
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(fkErrors) > 0 {
		return fmt.Errorf("foreign_key_check failed: %v", fkErrors)
	}
	return nil
}
