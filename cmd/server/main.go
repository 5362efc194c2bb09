// Package main - точка входа HTTP API Classroom Quest Hub.
//
// Сервер открывает хранилище (локальный sqlite или облачный PostgreSQL),
// подключает кэш рейтинга в Redis, если он включён, связывает команды,
// запросы и обработчики событий и обслуживает REST API до сигнала остановки.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classquest/classroom-hub/config"
	"github.com/classquest/classroom-hub/internal/application/eventhandler"
	"github.com/classquest/classroom-hub/internal/application/query"
	"github.com/classquest/classroom-hub/internal/bootstrap"
	"github.com/classquest/classroom-hub/internal/infrastructure/messaging"
	httpapi "github.com/classquest/classroom-hub/internal/interface/http"
	"github.com/classquest/classroom-hub/internal/interface/http/handlers"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config/config.yaml or ./config.yaml)")
	flag.Parse()

	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting Classroom Quest Hub API",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("version", cfg.App.Version),
		zap.String("storage", cfg.Storage.Driver),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ, МИГРАЦИИ И REDIS
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true, Cache: true})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing storage...")
		rt.Close()
	}()

	// Кэш передаётся как nil-интерфейс, если Redis выключен
	var boards eventhandler.BoardCache
	var leaderboards query.LeaderboardCache
	if rt.Boards != nil {
		boards = rt.Boards
		leaderboards = rt.Boards
	}

	defaults, err := rt.Catalog()
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
		if m := bus.Metrics(); m != nil {
			snap := m.Snapshot()
			log.Info("event bus statistics",
				zap.Int64("published", snap.TotalPublished),
				zap.Int64("handler_failures", snap.HandlerFailures),
			)
		}
	}()

	if err := eventhandler.Register(bus, rt.Store.Students(), boards, rt.Rules(), log); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("store", rt.Ping)
	if rt.Cache != nil {
		health.AddOptionalCheck("redis", handlers.NewPingCheck(rt.Cache))
	}

	deps := httpapi.NewDependencies(httpapi.Wiring{
		Store:     rt.Store,
		Publisher: bus,
		Cache:     leaderboards,
		Rules:     rt.Rules(),
		Defaults:  defaults,
		Logger:    log,
	})
	deps.HealthChecker = health

	server, err := httpapi.NewServer(serverConfig(cfg), deps)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown...", zap.Duration("timeout", cfg.HTTP.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// serverConfig maps the http section onto the server configuration.
func serverConfig(cfg *config.Config) httpapi.Config {
	sc := httpapi.DefaultConfig()
	sc.Host = cfg.HTTP.Host
	sc.Port = cfg.HTTP.Port
	if cfg.HTTP.ReadTimeout > 0 {
		sc.ReadTimeout = cfg.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout > 0 {
		sc.WriteTimeout = cfg.HTTP.WriteTimeout
	}
	if cfg.HTTP.IdleTimeout > 0 {
		sc.IdleTimeout = cfg.HTTP.IdleTimeout
	}
	sc.AllowedOrigins = cfg.HTTP.CORSOrigins
	sc.RateLimitPerMinute = cfg.HTTP.RateLimit
	sc.APIKeyHashes = cfg.HTTP.APIKeyHashes
	sc.Version = cfg.App.Version
	return sc
}
