package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360studio/adpilot/output"
	"github.com/spf13/cobra"
)

func runCmd(flags *globalFlags) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "run [brief]",
		Short: "Run one campaign",
		Long: `Run one campaign for a product brief.

The brief may be the product description itself, a path to a text, markdown
or HTML file, or an https URL of a product page. Without a brief the demo
product is used.`,
		Example: `  adpilot run "Reusable bamboo water bottle, keeps drinks cold for 24 hours"
  adpilot run briefs/bottle.md --save
  adpilot run https://example.com/products/bottle`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(cmd.Context()))

			b, err := app.LoadBrief(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("load brief: %w", err)
			}

			report, err := app.RunCampaign(cmd.Context(), b, save)
			if report != nil {
				if perr := output.NewPrinter(cmd.OutOrStdout()).PrintReport(report); perr != nil {
					return perr
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Write a markdown report to the output directory")
	return cmd
}
