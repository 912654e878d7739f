package main

import (
	"errors"
	"fmt"

	"github.com/c360studio/adpilot/output"
	"github.com/c360studio/adpilot/storage"
	"github.com/spf13/cobra"
)

func historyCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [campaign-id]",
		Short: "List past campaigns or show one in full",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			cfg, err := loadConfig(flags, logger)
			if err != nil {
				return err
			}
			path := cfg.HistoryPath()
			if path == "" {
				return errors.New("campaign history is disabled (storage.disabled)")
			}

			ctx := cmd.Context()
			store, err := storage.Open(ctx, path, storage.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			printer := output.NewPrinter(cmd.OutOrStdout())
			if len(args) == 0 {
				rows, err := store.ListCampaigns(ctx, limit)
				if err != nil {
					return err
				}
				return printer.PrintHistory(rows)
			}

			report, err := store.GetCampaign(ctx, args[0])
			if err != nil {
				return err
			}
			if err := printer.PrintReport(report); err != nil {
				return err
			}

			stats, err := store.StatsForCampaign(ctx, report.ID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "LLM calls: %d (%d failed), %d tokens, %d retries\n",
				stats.Calls, stats.Failed, stats.TotalTokens, stats.TotalRetries)
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", storage.DefaultListLimit, "Campaigns to list")
	return cmd
}
