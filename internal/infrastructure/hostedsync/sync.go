// Package hostedsync copies the local store into the hosted PostgreSQL
// database. The copy is one-way: rows are matched by id and the local
// version always wins.
package hostedsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/postgres"
	"github.com/classquest/classroom-hub/pkg/retry"

	"go.uber.org/zap"
)

// Target receives the exported snapshot. *postgres.Store implements it.
type Target interface {
	BulkUpsert(ctx context.Context, snap *backup.Snapshot, batchSize int) (backup.Counts, error)
}

// ErrNoTarget is returned when no hosted database is configured.
var ErrNoTarget = errors.New("hostedsync: hosted database is not configured")

// Options controls a single run.
type Options struct {
	// DryRun exports and counts without writing to the hosted database.
	DryRun bool

	// BatchSize is the number of aggregates per pgx batch.
	BatchSize int
}

// Result describes a finished run.
type Result struct {
	Counts   backup.Counts `json:"counts"`
	DryRun   bool          `json:"dry_run"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// Syncer runs the local → hosted copy.
type Syncer struct {
	local     repository.Store
	hosted    Target
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRetrier replaces the default database retrier.
func WithRetrier(r *retry.Retrier) Option {
	return func(s *Syncer) { s.retrier = r }
}

// WithPublisher publishes a system.hosted_sync_completed event after each
// successful write.
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Syncer) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// New creates a Syncer. hosted may be nil for dry runs.
func New(local repository.Store, hosted Target, opts ...Option) *Syncer {
	s := &Syncer{
		local:     local,
		hosted:    hosted,
		retrier:   retry.TxRetrier(retry.WithRetryIf(postgres.IsTransient)),
		publisher: shared.NopPublisher{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("hostedsync")
	return s
}

// Run exports the local store and upserts it into the hosted database in one
// transaction. The whole transaction is retried on transient errors.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = postgres.DefaultBatchSize
	}
	if s.hosted == nil && !opts.DryRun {
		return nil, ErrNoTarget
	}

	start := time.Now()
	snap, err := backup.Export(ctx, s.local)
	if err != nil {
		return nil, fmt.Errorf("hostedsync: export local store: %w", err)
	}

	res := &Result{DryRun: opts.DryRun}
	if opts.DryRun {
		res.Counts = snap.Counts()
		res.Duration = time.Since(start)
		s.logger.Info("dry run", zap.Int("rows", res.Counts.Total()))
		return res, nil
	}

	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		res.Attempts++
		counts, err := s.hosted.BulkUpsert(ctx, snap, opts.BatchSize)
		if err != nil {
			s.logger.Warn("hosted write failed", zap.Int("attempt", res.Attempts), zap.Error(err))
			return err
		}
		res.Counts = counts
		return nil
	})
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("hostedsync: write hosted store: %w", err)
	}

	s.logger.Info("hosted sync completed",
		zap.Int("rows", res.Counts.Total()),
		zap.Int("attempts", res.Attempts),
		zap.Duration("duration", res.Duration),
	)
	if err := s.publisher.Publish(shared.NewHostedSyncCompletedEvent(res.Counts.Total(), res.Duration)); err != nil {
		s.logger.Warn("publish sync event", zap.Error(err))
	}
	return res, nil
}
