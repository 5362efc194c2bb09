// Package bootstrap opens the stores and caches named in the configuration.
// The server, the worker and the admin CLI share it so every binary sees the
// same wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/config"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/infrastructure/catalog"
	"github.com/classquest/classroom-hub/internal/infrastructure/hostedsync"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/postgres"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/redis"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"
	"github.com/classquest/classroom-hub/pkg/circuitbreaker"
	"github.com/classquest/classroom-hub/pkg/logger"

	"go.uber.org/zap"
)

// Options select the optional parts of a Runtime.
type Options struct {
	// Migrate applies pending PostgreSQL migrations to every opened pool.
	Migrate bool

	// Cache connects Redis unless it is disabled in the configuration.
	Cache bool

	// Hosted opens the hosted database next to a local primary store.
	Hosted bool
}

// Runtime holds the opened resources. Close releases them in reverse order.
type Runtime struct {
	Config *config.Config
	Logger *zap.Logger

	// Store is the primary store selected by storage.driver.
	Store repository.Store

	// Hosted is the sync target. It is nil unless Options.Hosted was set and a
	// database URL is configured for a sqlite primary.
	Hosted *postgres.Store

	// Cache and Boards are nil when Redis is disabled or unreachable.
	Cache  *redis.Cache
	Boards *redis.LeaderboardCache

	ping    func(ctx context.Context) error
	closers []func()
}

// NewLogger builds the application logger from the log section.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.IsDevelopment(),
	})
}

// Open opens the primary store and, depending on opts, the hosted database
// and the leaderboard cache. On error everything opened so far is closed.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{Config: cfg, Logger: log}
	if err := rt.open(ctx, opts); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, opts Options) error {
	cfg, log := rt.Config, rt.Logger

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		store, closeFn, err := OpenHosted(ctx, cfg, opts.Migrate, log)
		if err != nil {
			return err
		}
		rt.closers = append(rt.closers, closeFn)
		rt.Store = store
		rt.Hosted = store
		rt.ping = store.Connection().Ping

	case config.DriverSQLite:
		log.Info("opening local store", zap.String("path", cfg.Storage.SQLitePath))
		store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Storage.SQLitePath})
		if err != nil {
			return fmt.Errorf("open local store: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		rt.Store = store
		rt.ping = store.Ping

		if opts.Hosted && cfg.HostedSyncEnabled() {
			hosted, closeFn, err := OpenHosted(ctx, cfg, opts.Migrate, log)
			if err != nil {
				return err
			}
			rt.closers = append(rt.closers, closeFn)
			rt.Hosted = hosted
		}

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if opts.Cache && !cfg.Redis.Disabled {
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			// Leaderboards fall back to the store.
			log.Warn("failed to connect to Redis, caching disabled", zap.Error(err))
		} else {
			rt.closers = append(rt.closers, func() { _ = cache.Close() })
			rt.Cache = cache
			rt.Boards = redis.NewLeaderboardCache(cache, func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			})
			log.Info("Redis connection established")
		}
	}

	return nil
}

// OpenHosted connects to the PostgreSQL database and optionally migrates it.
func OpenHosted(ctx context.Context, cfg *config.Config, migrate bool, log *zap.Logger) (*postgres.Store, func(), error) {
	if cfg.Database.URL == "" {
		return nil, nil, hostedsync.ErrNoTarget
	}
	if log == nil {
		log = zap.NewNop()
	}

	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if migrate {
		applied, err := postgres.NewMigrator(conn).Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", zap.Int("applied", applied))
	}

	return postgres.NewStore(conn), conn.Close, nil
}

// Ping checks the primary store.
func (rt *Runtime) Ping(ctx context.Context) error {
	if rt.ping == nil {
		return errors.New("store is not open")
	}
	return rt.ping(ctx)
}

// Rules returns the configured progression rules.
func (rt *Runtime) Rules() progression.Rules {
	return rt.Config.Rules.Progression()
}

// Catalog loads app.catalog_file, or the embedded default.
func (rt *Runtime) Catalog() (*catalog.Catalog, error) {
	if rt.Config.App.CatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(rt.Config.App.CatalogFile)
}

// Syncer builds the hosted sync over the runtime stores. Without a hosted
// database only dry runs succeed.
func (rt *Runtime) Syncer(publisher shared.EventPublisher) *hostedsync.Syncer {
	opts := []hostedsync.Option{hostedsync.WithLogger(rt.Logger)}
	if publisher != nil {
		opts = append(opts, hostedsync.WithPublisher(publisher))
	}
	if rt.Hosted == nil || rt.Hosted == rt.Store {
		return hostedsync.New(rt.Store, nil, opts...)
	}
	return hostedsync.New(rt.Store, rt.Hosted, opts...)
}

// Close releases every resource in reverse opening order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// ─── Config mapping ──────────────────────────────────────────────────────────

func postgresConfig(c config.DatabaseConfig) postgres.Config {
	pc := postgres.DefaultConfig()
	pc.URL = c.URL
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	if c.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = c.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime > 0 {
		pc.MaxConnIdleTime = c.ConnMaxIdleTime
	}
	return pc
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	if c.Host != "" {
		rc.Host = c.Host
	}
	if c.Port > 0 {
		rc.Port = c.Port
	}
	rc.Password = c.Password
	rc.DB = c.DB
	if c.PoolSize > 0 {
		rc.PoolSize = c.PoolSize
	}
	return rc
}
