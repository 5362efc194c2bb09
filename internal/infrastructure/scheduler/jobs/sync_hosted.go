package jobs

import (
	"context"

	"github.com/classquest/classroom-hub/internal/infrastructure/hostedsync"
)

// SyncHostedJob pushes the local store to the hosted database.
type SyncHostedJob struct {
	syncer    *hostedsync.Syncer
	batchSize int
}

// NewSyncHostedJob creates a new hosted sync job.
func NewSyncHostedJob(syncer *hostedsync.Syncer, batchSize int) *SyncHostedJob {
	return &SyncHostedJob{syncer: syncer, batchSize: batchSize}
}

// Name returns the job name.
func (j *SyncHostedJob) Name() string { return "sync_hosted" }

// Description returns a human-readable description.
func (j *SyncHostedJob) Description() string {
	return "Copies the local store into the hosted database"
}

// Run executes the sync job.
func (j *SyncHostedJob) Run(ctx context.Context) error {
	_, err := j.syncer.Run(ctx, hostedsync.Options{BatchSize: j.batchSize})
	return err
}
