// Package jobs contains the scheduled jobs run by the worker.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// BoardWriter stores computed class leaderboards.
// *redis.LeaderboardCache implements it.
type BoardWriter interface {
	Enabled() bool
	Replace(ctx context.Context, classID string, entries []leaderboard.Entry) error
}

// RebuildLeaderboardJob recomputes every class leaderboard from the store and
// replaces the cached copy. Incremental cache updates can drift (expired
// keys, writes made while Redis was down); this job is the reset.
type RebuildLeaderboardJob struct {
	store  repository.Store
	boards BoardWriter
	rules  progression.Rules
	logger *zap.Logger
	config RebuildLeaderboardConfig

	lastStats atomic.Pointer[RebuildStats]
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// Concurrency caps classes rebuilt in parallel.
	Concurrency int

	// Timeout is the maximum duration for the rebuild operation.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Concurrency: 4,
		Timeout:     2 * time.Minute,
	}
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Classes   int
	Students  int
	Skipped   bool
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
func NewRebuildLeaderboardJob(
	store repository.Store,
	boards BoardWriter,
	rules progression.Rules,
	logger *zap.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &RebuildLeaderboardJob{
		store:  store,
		boards: boards,
		rules:  rules,
		logger: logger.Named("rebuild_leaderboard"),
		config: config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string { return "rebuild_leaderboard" }

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Recomputes every class leaderboard into the cache"
}

// Run executes the rebuild job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	stats := &RebuildStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	if j.boards == nil || !j.boards.Enabled() {
		stats.Skipped = true
		j.logger.Debug("cache disabled, nothing to rebuild")
		return nil
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	classes, err := j.store.Classes().List(ctx)
	if err != nil {
		return fmt.Errorf("list classes: %w", err)
	}

	var students atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)
	for _, c := range classes {
		g.Go(func() error {
			roster, err := j.store.Students().ListByClass(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("class %s: list students: %w", c.ID, err)
			}
			if err := j.boards.Replace(gctx, c.ID, leaderboard.Build(roster, j.rules)); err != nil {
				return fmt.Errorf("class %s: replace board: %w", c.ID, err)
			}
			students.Add(int64(len(roster)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.Classes = len(classes)
	stats.Students = int(students.Load())
	j.logger.Info("leaderboards rebuilt",
		zap.Int("classes", stats.Classes),
		zap.Int("students", stats.Students),
	)
	return nil
}

// LastRebuildStats returns statistics from the last rebuild.
func (j *RebuildLeaderboardJob) LastRebuildStats() *RebuildStats {
	return j.lastStats.Load()
}
