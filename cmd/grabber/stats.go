package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/checkgrabber/internal/config"
	"github.com/edgard/checkgrabber/internal/database"
	"github.com/edgard/checkgrabber/internal/notify"
)

func newStatsCmd(load func() (*config.Config, error)) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print redemption statistics from the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := database.NewDB(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer database.CloseDB(db)
			store := database.NewStore(db, nil)

			agg, err := store.GetAggregate(cmd.Context())
			if err != nil {
				return fmt.Errorf("load aggregate stats: %w", err)
			}
			perAccount, err := store.GetStats(cmd.Context(), account)
			if err != nil {
				return fmt.Errorf("load account stats: %w", err)
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintln(out, notify.FormatStats(agg)); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "\n%s\n", notify.FormatAccountStats(perAccount))
			return err
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Only show counters for this account")
	return cmd
}
