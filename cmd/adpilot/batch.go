package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/c360studio/adpilot/brief"
	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/output"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// batchResult pairs a brief with its campaign outcome.
type batchResult struct {
	Brief  *brief.Brief
	Report *campaign.Report
	Err    error
}

func batchCmd(flags *globalFlags) *cobra.Command {
	var (
		globs    []string
		examples bool
		parallel int
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "batch [brief...]",
		Short: "Run campaigns for several briefs concurrently",
		Example: `  adpilot batch --examples --parallel 4
  adpilot batch --glob "briefs/**/*.md" --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(cmd.Context()))

			briefs, err := collectBriefs(cmd.Context(), app, args, globs, examples)
			if err != nil {
				return err
			}
			if len(briefs) == 0 {
				return errors.New("no briefs given: pass briefs, --glob or --examples")
			}

			results := runBatch(cmd.Context(), app, briefs, parallel, save)

			printer := output.NewPrinter(cmd.OutOrStdout())
			var errs []error
			for _, r := range results {
				if r.Err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", briefName(r.Brief), r.Err))
					continue
				}
				if err := printer.PrintReport(r.Report); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().StringArrayVar(&globs, "glob", nil, "Brief files matching a doublestar pattern (repeatable)")
	cmd.Flags().BoolVar(&examples, "examples", false, "Include the built-in example briefs")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 2, "Campaigns to run at once")
	cmd.Flags().BoolVar(&save, "save", false, "Write a markdown report per campaign")
	return cmd
}

// collectBriefs resolves positional briefs, glob matches and examples, in
// that order.
func collectBriefs(ctx context.Context, app *App, args, globs []string, examples bool) ([]*brief.Brief, error) {
	var briefs []*brief.Brief

	for _, arg := range args {
		b, err := app.LoadBrief(ctx, arg)
		if err != nil {
			return nil, fmt.Errorf("load brief %q: %w", arg, err)
		}
		briefs = append(briefs, b)
	}

	for _, pattern := range globs {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, path := range matches {
			b, err := app.briefs.LoadFile(ctx, path)
			if err != nil {
				if errors.Is(err, brief.ErrEmpty) {
					app.logger.Warn("Skipping empty brief", "path", path)
					continue
				}
				return nil, fmt.Errorf("load brief %s: %w", path, err)
			}
			briefs = append(briefs, b)
		}
	}

	if examples {
		for _, ex := range brief.Examples {
			briefs = append(briefs, ex.Brief())
		}
	}
	return briefs, nil
}

// runBatch runs every brief with at most parallel campaigns in flight.
// Results keep the input order. An invariant failure cancels the campaigns
// that have not started yet.
func runBatch(ctx context.Context, app *App, briefs []*brief.Brief, parallel int, save bool) []batchResult {
	if parallel < 1 {
		parallel = 1
	}

	results := make([]batchResult, len(briefs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, b := range briefs {
		results[i].Brief = b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			report, err := app.RunCampaign(gctx, b, save)
			results[i].Report = report
			results[i].Err = err
			if errors.Is(err, campaign.ErrInvariant) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		app.logger.Error("Batch stopped", "error", err)
	}
	return results
}

func briefName(b *brief.Brief) string {
	switch {
	case b.Title != "":
		return b.Title
	case b.Origin != "":
		return b.Origin
	}
	return string(b.Source)
}
