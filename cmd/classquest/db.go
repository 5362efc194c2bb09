package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/classquest/classroom-hub/internal/bootstrap"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/postgres"

	"github.com/spf13/cobra"
)

func (a *app) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the PostgreSQL schema",
		Long: `Manage the schema of the hosted PostgreSQL database (DATABASE_URL).

The local sqlite store migrates itself on open and needs no command.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: a.withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				applied, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Roll back the last applied migration",
			Args:  cobra.NoArgs,
			RunE: a.withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				version, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if version == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %03d\n", version)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and when they were applied",
			Args:  cobra.NoArgs,
			RunE: a.withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
				migrations, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED AT")
				for _, mg := range migrations {
					applied := "pending"
					if mg.Applied() {
						applied = mg.AppliedAt.UTC().Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%03d\t%s\t%s\n", mg.Version, mg.Name, applied)
				}
				return tw.Flush()
			}),
		},
	)
	return cmd
}

// withMigrator connects to the hosted database without migrating it.
func (a *app) withMigrator(fn func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := a.load()
		if err != nil {
			return err
		}
		store, closeFn, err := bootstrap.OpenHosted(cmd.Context(), cfg, false, log)
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(cmd, postgres.NewMigrator(store.Connection()))
	}
}
