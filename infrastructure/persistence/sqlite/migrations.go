package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial_schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS users (
				user_id INTEGER PRIMARY KEY AUTOINCREMENT,
				nickname TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL UNIQUE,
				assistant_id TEXT,
				thread_id TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS entries (
				entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				entry_date TEXT NOT NULL,
				contents TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (user_id, entry_date)
			)`,
			`CREATE TABLE IF NOT EXISTS analysis_records (
				entry_id INTEGER PRIMARY KEY REFERENCES entries(entry_id) ON DELETE CASCADE,
				user_id INTEGER NOT NULL,
				summary TEXT,
				emotion_analysis TEXT,
				advice TEXT,
				analyzed_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS emotion_stats (
				user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
				entry_date TEXT NOT NULL,
				total_score INTEGER,
				PRIMARY KEY (user_id, entry_date)
			)`,
		},
	},
	{
		version: 2,
		name:    "analysis_user_index",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_analysis_records_user ON analysis_records(user_id)`,
		},
	},
}

// runMigrations executes database schema migrations.
func (d *DB) runMigrations(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	version, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		d.logger.Info("Running migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := d.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	return nil
}

func (d *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}

// SchemaVersion returns the highest applied migration version.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := d.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}
