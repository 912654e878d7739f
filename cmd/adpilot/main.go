// Package main provides the adpilot binary entry point.
// Adpilot runs marketing campaigns: a writer drafts copy, a reviewer checks
// it for compliance, and an art director generates the matching image once
// the copy is approved or the retry budget runs out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/adpilot/llm/providers"

	"github.com/c360studio/adpilot/config"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "adpilot"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	outputDir  string
	maxRetries int
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Multi-step marketing campaign generator",
		Long: `Adpilot runs a writer, reviewer and art director over a product brief.

Each campaign:
- Drafts marketing copy for the brief
- Reviews it against compliance rules, revising until approved
- Generates a matching image once the copy is approved or retries run out

Text and image services are optional: every step has a rule-based fallback.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML, replaces adpilot.yaml lookup)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for images, reports and history")
	cmd.PersistentFlags().IntVar(&flags.maxRetries, "max-retries", -1, "Revisions allowed before the image is forced (-1 = config)")

	cmd.AddCommand(
		runCmd(flags),
		batchCmd(flags),
		watchCmd(flags),
		historyCmd(flags),
		checkCmd(flags),
		diagramCmd(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

// newLogger maps --log-level onto a text handler writing to stderr.
func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig runs the layered loader and applies command-line overrides.
func loadConfig(flags *globalFlags, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	if flags.configPath != "" {
		loader.WithFile(flags.configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if flags.outputDir != "" {
		cfg.Campaign.OutputDir = flags.outputDir
	}
	if flags.maxRetries >= 0 {
		cfg.Campaign.MaxRetries = flags.maxRetries
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setup loads logging and configuration and builds the App.
func setup(ctx context.Context, flags *globalFlags) (*App, error) {
	logger := newLogger(flags.logLevel)
	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return nil, err
	}
	return NewApp(ctx, cfg, logger)
}
