package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATOR
// ══════════════════════════════════════════════════════════════════════════════

// migrationLockKey serializes migrators across processes: the server and the
// worker both migrate on startup.
const migrationLockKey int64 = 0x636c617373 // "class"

// Migration is one schema step. AppliedAt is zero while it is pending.
type Migration struct {
	Version   int
	Name      string
	Up        string
	Down      string
	AppliedAt time.Time
}

// Applied reports whether the migration has run.
func (m Migration) Applied() bool { return !m.AppliedAt.IsZero() }

// Migrations returns the embedded schema in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_classes_students", Up: migration001Up, Down: migration001Down},
		{Version: 2, Name: "create_awarding_entities", Up: migration002Up, Down: migration002Down},
		{Version: 3, Name: "create_shop_and_history", Up: migration003Up, Down: migration003Down},
	}
}

// Migrator applies Migrations and records them in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a Migrator for the embedded schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: Migrations()}
}

// Migrate applies every pending migration, each in its own savepoint, and
// returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	count := 0
	err := m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for _, mig := range m.migrations {
			if _, ok := applied[mig.Version]; ok {
				continue
			}
			if err := m.step(ctx, tx, mig.Version, func(tx pgx.Tx) error {
				if _, err := tx.Exec(ctx, mig.Up); err != nil {
					return err
				}
				_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
				return err
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// Rollback reverts the newest applied migration and returns its version, or
// 0 when nothing is applied.
func (m *Migrator) Rollback(ctx context.Context) (int, error) {
	version := 0
	err := m.locked(ctx, func(tx pgx.Tx, applied map[int]time.Time) error {
		for v := range applied {
			version = max(version, v)
		}
		if version == 0 {
			return nil
		}
		i := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == version })
		if i < 0 {
			return fmt.Errorf("postgres: migration %d is applied but unknown to this binary", version)
		}
		return m.step(ctx, tx, version, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.migrations[i].Down); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Status lists every known migration with its apply time.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	out := slices.Clone(m.migrations)
	err := m.locked(ctx, func(_ pgx.Tx, applied map[int]time.Time) error {
		for i := range out {
			out[i].AppliedAt = applied[out[i].Version]
		}
		return nil
	})
	return out, err
}

// locked runs fn inside an outer transaction that holds the advisory lock
// and sees the current schema_migrations rows.
func (m *Migrator) locked(ctx context.Context, fn func(tx pgx.Tx, applied map[int]time.Time) error) error {
	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockKey); err != nil {
			return fmt.Errorf("postgres: migration lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version INTEGER PRIMARY KEY,
				name TEXT NOT NULL,
				applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`); err != nil {
			return fmt.Errorf("postgres: create schema_migrations: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
		if err != nil {
			return fmt.Errorf("postgres: read schema_migrations: %w", err)
		}
		applied := make(map[int]time.Time)
		var (
			version int
			at      time.Time
		)
		_, err = pgx.ForEachRow(rows, []any{&version, &at}, func() error {
			applied[version] = at
			return nil
		})
		if err != nil {
			return fmt.Errorf("postgres: read schema_migrations: %w", err)
		}
		return fn(tx, applied)
	})
}

// step runs one migration in a savepoint so a failure names its version.
func (m *Migrator) step(ctx context.Context, tx pgx.Tx, version int, fn func(pgx.Tx) error) error {
	if err := pgx.BeginFunc(ctx, tx, fn); err != nil {
		return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, version, err)
	}
	return nil
}

// ErrMigrationFailed wraps the error of a failed migration step.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CLASSES AND STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS classes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    grade VARCHAR(30) NOT NULL DEFAULT '',
    school_year VARCHAR(30) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    number INTEGER NOT NULL CHECK (number > 0),
    honorific TEXT NOT NULL DEFAULT '',
    level INTEGER NOT NULL DEFAULT 1,
    exp INTEGER NOT NULL DEFAULT 0 CHECK (exp >= 0),
    points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
    abilities JSONB NOT NULL DEFAULT '{}'::jsonb,
    avatar JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_students_class ON students(class_id, number);
CREATE INDEX IF NOT EXISTS idx_students_exp ON students(class_id, exp DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS classes;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: MISSIONS, ROADMAPS, PRAISE CARDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS missions (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    condition TEXT NOT NULL DEFAULT '',
    exp_reward INTEGER NOT NULL DEFAULT 0,
    gold_reward INTEGER NOT NULL DEFAULT 0,
    abilities JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_missions_class ON missions(class_id);

CREATE TABLE IF NOT EXISTS mission_achievements (
    mission_id TEXT NOT NULL REFERENCES missions(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    PRIMARY KEY (mission_id, student_id)
);

CREATE TABLE IF NOT EXISTS roadmaps (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    reward_title TEXT NOT NULL DEFAULT '',
    icon VARCHAR(50) NOT NULL DEFAULT '',
    abilities JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_roadmaps_class ON roadmaps(class_id);

CREATE TABLE IF NOT EXISTS roadmap_steps (
    id TEXT PRIMARY KEY,
    roadmap_id TEXT NOT NULL REFERENCES roadmaps(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    goal TEXT NOT NULL,
    UNIQUE (roadmap_id, position)
);

CREATE TABLE IF NOT EXISTS roadmap_step_achievements (
    step_id TEXT NOT NULL REFERENCES roadmap_steps(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    PRIMARY KEY (step_id, student_id)
);

CREATE TABLE IF NOT EXISTS praise_cards (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    abilities JSONB NOT NULL DEFAULT '{}'::jsonb,
    exp_reward INTEGER NOT NULL DEFAULT 0,
    gold_reward INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_praise_cards_class ON praise_cards(class_id);
`

const migration002Down = `
DROP TABLE IF EXISTS praise_cards;
DROP TABLE IF EXISTS roadmap_step_achievements;
DROP TABLE IF EXISTS roadmap_steps;
DROP TABLE IF EXISTS roadmaps;
DROP TABLE IF EXISTS mission_achievements;
DROP TABLE IF EXISTS missions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: POINT SHOP AND HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS point_shop_items (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price INTEGER NOT NULL CHECK (price >= 0),
    slot VARCHAR(20) NOT NULL DEFAULT '',
    image_ref TEXT NOT NULL DEFAULT '',
    stock INTEGER NOT NULL DEFAULT -1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_point_shop_items_class ON point_shop_items(class_id);

-- item_id has no foreign key: history outlives deleted items.
CREATE TABLE IF NOT EXISTS purchase_history (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    item_id TEXT NOT NULL,
    item_name TEXT NOT NULL,
    price INTEGER NOT NULL,
    purchased_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_purchase_history_class ON purchase_history(class_id, purchased_at DESC);
CREATE INDEX IF NOT EXISTS idx_purchase_history_student ON purchase_history(student_id, purchased_at DESC);

CREATE TABLE IF NOT EXISTS reward_history (
    id TEXT PRIMARY KEY,
    class_id TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
    student_id TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    source VARCHAR(20) NOT NULL,
    source_id TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    exp INTEGER NOT NULL DEFAULT 0,
    gold INTEGER NOT NULL DEFAULT 0,
    level_before INTEGER NOT NULL DEFAULT 1,
    level_after INTEGER NOT NULL DEFAULT 1,
    title TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reward_history_student ON reward_history(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reward_history_class ON reward_history(class_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS reward_history;
DROP TABLE IF EXISTS purchase_history;
DROP TABLE IF EXISTS point_shop_items;
`
