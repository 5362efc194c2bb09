package main

import (
	"fmt"
	"os"

	"github.com/classquest/classroom-hub/internal/application/command"
	"github.com/classquest/classroom-hub/internal/bootstrap"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"

	"github.com/spf13/cobra"
)

func (a *app) backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or import a JSON snapshot of the store",
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot of the whole store",
		Long: `Write a snapshot of the whole store as indented JSON.

Without --out the snapshot is printed to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.Context(), bootstrap.Options{Migrate: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := backup.Export(cmd.Context(), rt.Store)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			if err := backup.WriteFile(out, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", snap.Counts().Total(), out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "output file")

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot into the store",
		Long: `Load a snapshot into the store in one transaction.

Rows are upserted by id, so importing the same file twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := backup.ReadFile(args[0])
			if err != nil {
				return err
			}

			rt, err := a.open(cmd.Context(), bootstrap.Options{Migrate: true, Cache: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			counts, err := command.NewImportBackupHandler(rt.Store, rt.Boards, rt.Logger).
				Handle(cmd.Context(), command.ImportBackupCommand{Snapshot: snap})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), counts)
		},
	}

	cmd.AddCommand(export, imp)
	return cmd
}

func (a *app) legacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Import data from the old browser storage",
	}

	var dryRun bool
	imp := &cobra.Command{
		Use:   "import <dump.json>",
		Short: "Import a browser storage dump",
		Long: `Import a browser storage dump: a JSON object of storage key to value.

Duplicate student copies are merged and levels are recomputed from exp.
With --dry-run the store is left untouched and only the report is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rt, err := a.open(cmd.Context(), bootstrap.Options{Migrate: true, Cache: !dryRun})
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := command.NewImportLegacyHandler(rt.Store, rt.Rules(), rt.Boards, rt.Logger).
				Handle(cmd.Context(), command.ImportLegacyCommand{Dump: f, DryRun: dryRun})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	imp.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing")

	cmd.AddCommand(imp)
	return cmd
}
