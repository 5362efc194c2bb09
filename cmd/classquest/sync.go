package main

import (
	"github.com/classquest/classroom-hub/internal/bootstrap"
	"github.com/classquest/classroom-hub/internal/infrastructure/hostedsync"

	"github.com/spf13/cobra"
)

func (a *app) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize stores",
	}

	var (
		dryRun    bool
		batchSize int
	)
	hosted := &cobra.Command{
		Use:   "hosted",
		Short: "Copy the local store into the hosted database",
		Long: `Copy the local sqlite store into the hosted PostgreSQL database.

The copy is one-way and last write wins by id. The hosted schema is migrated
first. With --dry-run only the row counts are reported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.Context(), bootstrap.Options{Migrate: true, Hosted: !dryRun})
			if err != nil {
				return err
			}
			defer rt.Close()

			if batchSize <= 0 {
				batchSize = rt.Config.Database.SyncBatchSize
			}
			res, err := rt.Syncer(nil).Run(cmd.Context(), hostedsync.Options{DryRun: dryRun, BatchSize: batchSize})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	hosted.Flags().BoolVar(&dryRun, "dry-run", false, "count rows without writing")
	hosted.Flags().IntVar(&batchSize, "batch-size", 0, "rows per batch (default: database.sync_batch_size)")

	cmd.AddCommand(hosted)
	return cmd
}
