package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/classquest/classroom-hub/internal/infrastructure/catalog"
	"github.com/classquest/classroom-hub/internal/interface/http/handlers"

	"github.com/spf13/cobra"
)

func (a *app) apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage HTTP API keys",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash <key>",
		Short: "Print the bcrypt hash of an API key",
		Long: `Print the bcrypt hash of an API key.

Add the hash to http.api_key_hashes (or API_KEY_HASHES) and hand the key
itself to the client.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := handlers.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}

func (a *app) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with starter catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a catalog YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d praise card(s), %d shop item(s), %d roadmap(s)\n",
				len(c.PraiseCards), len(c.ShopItems), len(c.Roadmaps))
			return nil
		},
	})
	return cmd
}

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect progression rules",
	}

	var levels int
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the level thresholds and reward defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := a.load()
			if err != nil {
				return err
			}
			rules := cfg.Rules.Progression()
			if levels <= 0 || levels > rules.MaxLevel {
				levels = rules.MaxLevel
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "LEVEL\tTOTAL EXP\tTO NEXT\t")
			for l := 1; l <= levels; l++ {
				next := "-"
				if l < rules.MaxLevel {
					next = fmt.Sprint(rules.ThresholdFor(l+1) - rules.ThresholdFor(l))
				}
				fmt.Fprintf(tw, "%d\t%d\t%s\t\n", l, rules.ThresholdFor(l), next)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "\ngold per level: %d, ability increment: %d, max level: %d\n",
				rules.GoldPerLevel, rules.AbilityIncrement, rules.MaxLevel)
			fmt.Fprintf(out, "praise card: %d exp, %d gold\n", rules.PraiseCardExp, rules.PraiseCardGold)
			fmt.Fprintf(out, "mission: %d exp, %d gold\n", rules.MissionExp, rules.MissionGold)
			fmt.Fprintf(out, "roadmap step: %d exp\n", rules.RoadmapStepExp)
			return nil
		},
	}
	show.Flags().IntVarP(&levels, "levels", "n", 20, "number of levels to print")

	cmd.AddCommand(show)
	return cmd
}
