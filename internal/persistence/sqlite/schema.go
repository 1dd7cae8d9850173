package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one versioned schema step.
type migration struct {
	version    string
	statements []string
}

var jobStoreMigrations = []migration{
	{
		version: "0001_scheduled_jobs",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS scheduled_jobs (
				job_key     TEXT PRIMARY KEY,
				job_type    TEXT NOT NULL,
				payload     TEXT NOT NULL,
				fire_at     INTEGER NOT NULL,
				retry_count INTEGER NOT NULL DEFAULT 0,
				max_retries INTEGER NOT NULL DEFAULT 0,
				revision    TEXT NOT NULL,
				lease_until INTEGER NOT NULL DEFAULT 0,
				created_at  INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_scheduled_jobs_due ON scheduled_jobs (fire_at, job_key)`,
		},
	},
}

// migrate applies pending migrations, each in its own transaction, and
// records them in schema_migrations.
func migrate(ctx context.Context, db *sql.DB, migrations []migration) error {
	const versionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL,
		execution_time_ms INTEGER
	)`
	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("sqlite: check migration %s: %w", m.version, err)
		}

		started := time.Now()
		err = withTransaction(ctx, db, func(tx *sql.Tx) error {
			for i, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("sqlite: migration %s statement %d: %w", m.version, i+1, err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at, execution_time_ms) VALUES (?, ?, ?)`,
				m.version, time.Now().UTC().Format(time.RFC3339), time.Since(started).Milliseconds())
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
