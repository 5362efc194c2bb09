// Package main - фоновый процесс Classroom Quest Hub.
//
// Worker выполняет задачи по расписанию cron:
//   - rebuild_leaderboard: пересчёт рейтингов классов в Redis;
//   - backup_snapshot: JSON-копия хранилища с ротацией старых файлов;
//   - sync_hosted: односторонняя синхронизация локального хранилища с PostgreSQL.
//
// Пустое расписание отключает задачу.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/classquest/classroom-hub/config"
	"github.com/classquest/classroom-hub/internal/bootstrap"
	"github.com/classquest/classroom-hub/internal/infrastructure/scheduler"
	"github.com/classquest/classroom-hub/internal/infrastructure/scheduler/jobs"

	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	configPath := flag.String("config", "", "path to config file")
	runOnce := flag.String("run", "", "run one job by name and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, *configPath, *runOnce); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, runOnce string) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting Classroom Quest Hub Worker",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩА (worker также должен иметь актуальную схему)
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap.Open(ctx, cfg, log, bootstrap.Options{Migrate: true, Cache: true, Hosted: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПЛАНИРОВЩИК И ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	schedConfig := scheduler.DefaultSchedulerConfig()
	schedConfig.Logger = log
	schedConfig.Timezone = cfg.App.Location()
	sched := scheduler.NewScheduler(schedConfig)

	if err := registerJobs(sched, rt, log); err != nil {
		return err
	}

	if runOnce != "" {
		result, err := sched.RunNow(ctx, runOnce)
		if err != nil {
			return err
		}
		log.Info("job finished", zap.String("job", result.JobName), zap.Duration("duration", result.Duration))
		return result.Error
	}

	if !cfg.Scheduler.Enabled {
		log.Info("scheduler is disabled, nothing to do")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("Classroom Quest Hub Worker is running", zap.Int("jobs", len(sched.ListJobs())))

	<-ctx.Done()
	log.Info("received shutdown signal, waiting for running jobs...")

	if err := sched.Stop(); err != nil {
		return err
	}
	if m := sched.Metrics(); m != nil {
		snap := m.Snapshot()
		log.Info("job statistics",
			zap.Int64("executions", snap.TotalExecutions),
			zap.Int64("failures", snap.TotalFailures),
			zap.Duration("avg_duration", snap.AverageDuration),
		)
	}
	log.Info("shutdown completed successfully")
	return nil
}

type entry struct {
	job  scheduler.Job
	spec string
}

// registerJobs adds the jobs the runtime can serve.
func registerJobs(sched *scheduler.Scheduler, rt *bootstrap.Runtime, log *zap.Logger) error {
	sc := rt.Config.Scheduler
	var list []entry

	if rt.Boards != nil {
		job := jobs.NewRebuildLeaderboardJob(rt.Store, rt.Boards, rt.Rules(), log, jobs.DefaultRebuildLeaderboardConfig())
		list = append(list, entry{job, sc.LeaderboardSpec})
	} else {
		log.Info("leaderboard cache disabled, rebuild job skipped")
	}

	list = append(list, entry{jobs.NewBackupSnapshotJob(rt.Store, sc.BackupDir, sc.BackupKeep, log), sc.BackupSpec})

	if rt.Hosted != nil && rt.Hosted != rt.Store {
		list = append(list, entry{jobs.NewSyncHostedJob(rt.Syncer(nil), rt.Config.Database.SyncBatchSize), sc.SyncSpec})
	} else {
		log.Info("hosted database not configured, sync job skipped")
	}

	// Jobs without a schedule stay registered but disabled, so -run reaches them.
	for _, e := range list {
		spec := e.spec
		if spec == "" {
			spec = "@yearly"
		}
		if err := sched.Register(e.job, spec); err != nil {
			return fmt.Errorf("failed to register %s: %w", e.job.Name(), err)
		}
		if e.spec == "" {
			log.Info("job has no schedule, disabled", zap.String("job", e.job.Name()))
			if err := sched.DisableJob(e.job.Name()); err != nil {
				return err
			}
		}
	}
	return nil
}
