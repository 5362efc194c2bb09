package command

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
	"github.com/classquest/classroom-hub/internal/infrastructure/hostedsync"
	"github.com/classquest/classroom-hub/internal/infrastructure/legacy"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/postgres"

	"go.uber.org/zap"
)

// BoardInvalidator drops cached class leaderboards. *redis.LeaderboardCache
// implements it; a nil cache is a no-op.
type BoardInvalidator interface {
	Invalidate(ctx context.Context, classID string) error
}

// invalidateBoards drops the boards of classes an import wrote to, so the next
// read rebuilds them from the store. Cache errors are logged only.
func invalidateBoards(ctx context.Context, boards BoardInvalidator, classIDs []string, logger *zap.Logger) {
	if boards == nil {
		return
	}
	for _, id := range classIDs {
		if err := boards.Invalidate(ctx, id); err != nil {
			logger.Warn("failed to invalidate leaderboard", zap.String("class_id", id), zap.Error(err))
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT BACKUP COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ImportBackupCommand restores a snapshot. Rows are upserted by id.
type ImportBackupCommand struct {
	Snapshot *backup.Snapshot
}

// Validate validates the command.
func (c ImportBackupCommand) Validate() error {
	if c.Snapshot == nil {
		return errors.New("import_backup: snapshot is required")
	}
	return nil
}

// ImportBackupHandler handles the ImportBackupCommand.
type ImportBackupHandler struct {
	store  repository.Store
	boards BoardInvalidator
	logger *zap.Logger
}

// NewImportBackupHandler creates a new ImportBackupHandler. boards may be nil.
func NewImportBackupHandler(store repository.Store, boards BoardInvalidator, logger *zap.Logger) *ImportBackupHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportBackupHandler{store: store, boards: boards, logger: logger}
}

// Handle executes the import backup command.
func (h *ImportBackupHandler) Handle(ctx context.Context, cmd ImportBackupCommand) (backup.Counts, error) {
	if err := cmd.Validate(); err != nil {
		return backup.Counts{}, err
	}

	counts, err := backup.Import(ctx, h.store, cmd.Snapshot)
	if err != nil {
		return backup.Counts{}, err
	}
	invalidateBoards(ctx, h.boards, cmd.Snapshot.ClassIDs(), h.logger)

	h.logger.Info("backup imported", zap.Int("rows", counts.Total()))
	return counts, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// IMPORT LEGACY COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// ImportLegacyCommand loads a browser storage dump.
type ImportLegacyCommand struct {
	// Dump is the JSON object of storage keys.
	Dump io.Reader

	// DryRun converts and reports without writing.
	DryRun bool
}

// Validate validates the command.
func (c ImportLegacyCommand) Validate() error {
	if c.Dump == nil {
		return errors.New("import_legacy: dump is required")
	}
	return nil
}

// ImportLegacyResult contains the conversion report and written counts.
type ImportLegacyResult struct {
	Report *legacy.Report `json:"report"`
	Counts backup.Counts  `json:"counts"`
	DryRun bool           `json:"dry_run"`
}

// ImportLegacyHandler handles the ImportLegacyCommand.
type ImportLegacyHandler struct {
	store  repository.Store
	rules  progression.Rules
	boards BoardInvalidator
	logger *zap.Logger
}

// NewImportLegacyHandler creates a new ImportLegacyHandler. boards may be nil.
func NewImportLegacyHandler(store repository.Store, rules progression.Rules, boards BoardInvalidator, logger *zap.Logger) *ImportLegacyHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportLegacyHandler{store: store, rules: rules, boards: boards, logger: logger}
}

// Handle executes the import legacy command.
func (h *ImportLegacyHandler) Handle(ctx context.Context, cmd ImportLegacyCommand) (*ImportLegacyResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	dump, err := legacy.ParseDump(cmd.Dump)
	if err != nil {
		return nil, fmt.Errorf("import_legacy: %w", err)
	}

	report, counts, err := legacy.Import(ctx, h.store, dump, legacy.Options{Rules: h.rules}, cmd.DryRun)
	if err != nil {
		return nil, err
	}
	if !cmd.DryRun {
		invalidateBoards(ctx, h.boards, report.ClassIDs, h.logger)
	}

	h.logger.Info("legacy dump imported",
		zap.Bool("dry_run", cmd.DryRun),
		zap.Int("classes", report.Classes),
		zap.Int("students", report.Students),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("rows", counts.Total()),
	)
	return &ImportLegacyResult{Report: report, Counts: counts, DryRun: cmd.DryRun}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SYNC HOSTED COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// SyncHostedCommand copies the local store into the hosted database.
type SyncHostedCommand struct {
	DryRun bool

	// BatchSize defaults to postgres.DefaultBatchSize.
	BatchSize int
}

// Validate validates the command.
func (c SyncHostedCommand) Validate() error {
	if c.BatchSize < 0 {
		return errors.New("sync_hosted: batch size cannot be negative")
	}
	return nil
}

// SyncHostedHandler handles the SyncHostedCommand.
type SyncHostedHandler struct {
	syncer *hostedsync.Syncer
}

// NewSyncHostedHandler creates a new SyncHostedHandler.
func NewSyncHostedHandler(syncer *hostedsync.Syncer) *SyncHostedHandler {
	return &SyncHostedHandler{syncer: syncer}
}

// Handle executes the sync hosted command.
func (h *SyncHostedHandler) Handle(ctx context.Context, cmd SyncHostedCommand) (*hostedsync.Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if cmd.BatchSize == 0 {
		cmd.BatchSize = postgres.DefaultBatchSize
	}
	return h.syncer.Run(ctx, hostedsync.Options{DryRun: cmd.DryRun, BatchSize: cmd.BatchSize})
}
