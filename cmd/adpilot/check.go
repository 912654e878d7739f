package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/c360studio/adpilot/config"
	"github.com/c360studio/adpilot/model"
	"github.com/spf13/cobra"
)

func checkCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and credentials",
		Long: `Check that the configuration loads and validates, that every capability
the campaign uses has an endpoint with credentials, that keys are well formed,
and that the image provider can start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			logger := newLogger(flags.logLevel)

			cfg, err := loadConfig(flags, logger)
			if err != nil {
				fmt.Fprintln(out, "✗ Configuration")
				return err
			}
			fmt.Fprintln(out, "✓ Configuration")

			creds, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			reg := cfg.Registry()
			printChains(out, cfg, reg)

			if err := cfg.CheckCredentials(creds, reg); err != nil {
				fmt.Fprintln(out, "✗ Credentials")
				var cerr *config.ConfigError
				for _, e := range unjoin(err) {
					if errors.As(e, &cerr) {
						fmt.Fprintf(out, "    %s: %s\n", cerr.Key, cerr.Problem)
					}
				}
				return err
			}
			fmt.Fprintln(out, "✓ Credentials")

			fmt.Fprintf(out, "✓ Image provider: %s\n", cfg.Image.Provider)
			if path := cfg.HistoryPath(); path != "" {
				fmt.Fprintf(out, "✓ History: %s\n", path)
			}
			if cfg.NATS.Enabled() {
				fmt.Fprintf(out, "✓ Events: %s\n", natsTarget(cfg.NATS))
			}
			fmt.Fprintln(out, "\nReady to run campaigns.")
			return nil
		},
	}
}

func printChains(out io.Writer, cfg *config.Config, reg *model.Registry) {
	for _, p := range []struct{ role, capability string }{
		{"writer", cfg.Campaign.Writer.Capability},
		{"reviewer", cfg.Campaign.Reviewer.Capability},
	} {
		fmt.Fprintf(out, "  %s (%s): %v\n", p.role, p.capability, reg.GetFallbackChain(model.Capability(p.capability)))
	}
}

func natsTarget(n config.NATSConfig) string {
	if n.Embedded {
		return "embedded server"
	}
	return n.URL
}

// unjoin flattens an errors.Join tree one level.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
