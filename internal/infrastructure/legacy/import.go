package legacy

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
)

// Import converts the dump and writes it into the store in one transaction.
// With dryRun the store is left untouched and only the report is returned.
func Import(ctx context.Context, store repository.Store, d Dump, opts Options, dryRun bool) (*Report, backup.Counts, error) {
	snap, report := Convert(d, opts)
	if dryRun {
		return report, snap.Counts(), nil
	}
	counts, err := backup.Import(ctx, store, snap)
	if err != nil {
		return report, backup.Counts{}, fmt.Errorf("legacy: import: %w", err)
	}
	return report, counts, nil
}
