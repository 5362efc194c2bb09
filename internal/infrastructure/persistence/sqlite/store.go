// Package sqlite implements the local single-file store. It replaces the
// browser storage keys with one normalized database: one table per aggregate,
// each row holding the aggregate as a JSON document.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	_ "modernc.org/sqlite"
)

// DriverName is reported by Store.Driver.
const DriverName = "sqlite"

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("sqlite: store is closed")

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// dbtx is implemented by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Config holds local store settings.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string

	// BusyTimeoutMS is how long a writer waits for a lock.
	BusyTimeoutMS int
}

// DefaultConfig returns the default local store configuration.
func DefaultConfig() Config {
	return Config{
		Path:          filepath.Join("data", "classquest.db"),
		BusyTimeoutMS: 5000,
	}
}

// dsn builds a modernc DSN. Pragmas are passed per connection so every
// pooled connection gets them, not only the first one.
func (c Config) dsn() string {
	busy := c.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Add("_pragma", "foreign_keys(ON)")
	q.Set("_txlock", "immediate")
	return "file:" + c.Path + "?" + q.Encode()
}

// Store is the local implementation of repository.Store.
type Store struct {
	db *sql.DB
	q  dbtx
	tx bool
}

var _ repository.Store = (*Store)(nil)

// Open opens (and creates, if needed) the local store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.tx {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

// Driver implements repository.Store.
func (s *Store) Driver() string { return DriverName }

// WithinTx implements repository.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &Store{db: s.db, q: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// ─── Repositories ────────────────────────────────────────────────────────────

// Classes implements repository.Store.
func (s *Store) Classes() classroom.Repository { return &classRepo{s: s} }

// Students implements repository.Store.
func (s *Store) Students() student.Repository { return &studentRepo{s: s} }

// Missions implements repository.Store.
func (s *Store) Missions() mission.Repository { return &missionRepo{s: s} }

// Roadmaps implements repository.Store.
func (s *Store) Roadmaps() roadmap.Repository { return &roadmapRepo{s: s} }

// PraiseCards implements repository.Store.
func (s *Store) PraiseCards() praise.Repository { return &cardRepo{s: s} }

// Shop implements repository.Store.
func (s *Store) Shop() shop.Repository { return &shopRepo{s: s} }

// Rewards implements repository.Store.
func (s *Store) Rewards() reward.Repository { return &rewardRepo{s: s} }

// ─── Migrations ──────────────────────────────────────────────────────────────

// documentTables lists every aggregate table. Order matters for class deletion:
// owned rows first, the class row last.
var documentTables = []string{
	"reward_log",
	"purchases",
	"shop_items",
	"praise_cards",
	"roadmaps",
	"missions",
	"students",
	"classes",
}

func (s *Store) migrate(ctx context.Context) error {
	for _, table := range documentTables {
		schema := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %[1]s (
				id         TEXT PRIMARY KEY,
				class_id   TEXT NOT NULL DEFAULT '',
				owner_id   TEXT NOT NULL DEFAULT '',
				data       TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_class ON %[1]s(class_id);
			CREATE INDEX IF NOT EXISTS idx_%[1]s_owner ON %[1]s(owner_id);
		`, table)
		if _, err := s.q.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("create %s: %w", table, err)
		}
	}
	return nil
}
