package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"

	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKUP SNAPSHOT JOB
// ══════════════════════════════════════════════════════════════════════════════

// BackupSnapshotJob writes backup-YYYYMMDD-HHMMSS.json into Dir and keeps the
// newest Keep files.
type BackupSnapshotJob struct {
	store  repository.Store
	dir    string
	keep   int
	now    func() time.Time
	logger *zap.Logger

	lastPath string
}

// NewBackupSnapshotJob creates a new backup job.
func NewBackupSnapshotJob(store repository.Store, dir string, keep int, logger *zap.Logger) *BackupSnapshotJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupSnapshotJob{
		store:  store,
		dir:    dir,
		keep:   keep,
		now:    time.Now,
		logger: logger.Named("backup_snapshot"),
	}
}

// Name returns the job name.
func (j *BackupSnapshotJob) Name() string { return "backup_snapshot" }

// Description returns a human-readable description.
func (j *BackupSnapshotJob) Description() string {
	return "Exports the store to a JSON backup and rotates old backups"
}

// Run executes the backup job.
func (j *BackupSnapshotJob) Run(ctx context.Context) error {
	snap, err := backup.Export(ctx, j.store)
	if err != nil {
		return err
	}

	path := filepath.Join(j.dir, backup.FileName(j.now()))
	if err := backup.WriteFile(path, snap); err != nil {
		return err
	}
	j.lastPath = path

	removed, err := backup.Rotate(j.dir, j.keep)
	if err != nil {
		return fmt.Errorf("rotate backups: %w", err)
	}

	j.logger.Info("backup written",
		zap.String("path", path),
		zap.Int("rows", snap.Counts().Total()),
		zap.Int("rotated", len(removed)),
	)
	return nil
}
