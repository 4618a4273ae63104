package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// migrationLockID keys the advisory lock held while migrations run, so that
// instances started together with auto-migrate apply each version once.
const migrationLockID = 0x77616b65

// Migration is one schema version.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded migrations and records them in
// schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a Migrator over the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

const createMigrationTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)
`

func (m *Migrator) applied(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}) (map[int]time.Time, error) {
	rows, err := q.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: list applied: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			version int
			at      time.Time
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("%w: scan applied: %v", ErrMigrationFailed, err)
		}
		out[version] = at
	}
	return out, rows.Err()
}

// locked runs fn in one transaction holding the migration advisory lock.
func (m *Migrator) locked(ctx context.Context, fn func(tx pgx.Tx, applied map[int]time.Time) error) error {
	return m.conn.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return fmt.Errorf("%w: lock: %v", ErrMigrationFailed, err)
		}
		if _, err := tx.Exec(ctx, createMigrationTable); err != nil {
			return fmt.Errorf("%w: create table: %v", ErrMigrationFailed, err)
		}
		applied, err := m.applied(ctx, tx)
		if err != nil {
			return err
		}
		return fn(tx, applied)
	})
}

// Migrate applies every pending migration in version order and returns how
// many ran. All of them commit together or not at all.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	var n int
	err := m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
				return fmt.Errorf("%w: record %d: %v", ErrMigrationFailed, mig.Version, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Rollback reverts the newest applied migration. It is a no-op on an empty
// schema.
func (m *Migrator) Rollback(ctx context.Context) error {
	return m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		last, ok := latestApplied(m.migrations, applied)
		if !ok {
			return nil
		}
		if _, err := tx.Exec(ctx, last.DownSQL); err != nil {
			return fmt.Errorf("%w: revert %03d_%s: %v", ErrMigrationFailed, last.Version, last.Name, err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, last.Version)
		return err
	})
}

// Status lists every known migration with its applied time.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	var out []Migration
	err := m.locked(ctx, func(_ pgx.Tx, applied map[int]time.Time) error {
		out = markApplied(m.migrations, applied)
		return nil
	})
	return out, err
}

func markApplied(migrations []Migration, applied map[int]time.Time) []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	for i := range out {
		if at, ok := applied[out[i].Version]; ok {
			out[i].IsApplied = true
			out[i].AppliedAt = at
		}
	}
	return out
}

func latestApplied(migrations []Migration, applied map[int]time.Time) (Migration, bool) {
	for i := len(migrations) - 1; i >= 0; i-- {
		if _, ok := applied[migrations[i].Version]; ok {
			return migrations[i], true
		}
	}
	return Migration{}, false
}

// GetMigrations returns the embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_users",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_user_events",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- The aggregate body (alarms, sleep sessions, wake-ups, challenges) lives in
-- document. Friend lists are arrays so they can be changed with
-- array_append/array_remove without touching the document.
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email VARCHAR(254) NOT NULL UNIQUE,
    username VARCHAR(32) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0,
    document JSONB NOT NULL DEFAULT '{}'::jsonb,
    friends TEXT[] NOT NULL DEFAULT '{}',
    outgoing_requests TEXT[] NOT NULL DEFAULT '{}',
    incoming_requests TEXT[] NOT NULL DEFAULT '{}',
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (xp >= 0)
);

CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at);
CREATE INDEX IF NOT EXISTS idx_users_xp ON users(xp DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE USER EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Append-only audit trail of domain events, written by the event journal.
CREATE TABLE IF NOT EXISTS user_events (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    event_type VARCHAR(64) NOT NULL,
    payload JSONB NOT NULL DEFAULT '{}'::jsonb,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_user_events_user ON user_events(user_id, occurred_at DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS user_events;
`
