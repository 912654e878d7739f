package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/adpilot/brief"
	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/output"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// watchDebounce lets editors finish writing before a brief is read.
const watchDebounce = 300 * time.Millisecond

// briefExtensions are the files the watcher treats as briefs.
var briefExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var existing bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Run a campaign for every brief dropped into a directory",
		Long: `Watch a directory and run a campaign for each brief file created or
updated in it (.txt, .md, .html). A markdown report is saved for every
campaign. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer app.Close(context.WithoutCancel(cmd.Context()))

			w := &briefWatcher{
				app:      app,
				dir:      args[0],
				existing: existing,
				out:      cmd.OutOrStdout(),
			}
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "Also run briefs already in the directory")
	return cmd
}

// briefWatcher runs campaigns for brief files appearing in dir.
type briefWatcher struct {
	app      *App
	dir      string
	existing bool
	out      io.Writer

	// onReport is called after each campaign; used by tests.
	onReport func(*campaign.Report)
}

// Run blocks until ctx is done or the watcher fails.
func (w *briefWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.app.logger.Info("Watching for briefs", "dir", w.dir)

	if w.existing {
		entries, err := os.ReadDir(w.dir)
		if err != nil {
			return fmt.Errorf("read %s: %w", w.dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isBriefFile(e.Name()) {
				w.process(ctx, filepath.Join(w.dir, e.Name()))
			}
		}
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isBriefFile(event.Name) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.app.logger.Warn("Watcher error", "error", err)

		case <-timer.C:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				w.process(ctx, p)
			}
		}
	}
}

// process runs one brief file. Failures are logged so the watcher keeps
// going.
func (w *briefWatcher) process(ctx context.Context, path string) {
	b, err := w.app.briefs.LoadFile(ctx, path)
	if err != nil {
		if errors.Is(err, brief.ErrEmpty) {
			w.app.logger.Debug("Skipping empty brief", "path", path)
			return
		}
		w.app.logger.Warn("Failed to load brief", "path", path, "error", err)
		return
	}

	report, err := w.app.RunCampaign(ctx, b, true)
	if err != nil {
		w.app.logger.Error("Campaign failed", "path", path, "error", err)
		if report == nil {
			return
		}
	}

	if err := output.NewPrinter(w.out).PrintReport(report); err != nil {
		w.app.logger.Warn("Failed to print report", "error", err)
	}
	if w.onReport != nil {
		w.onReport(report)
	}
}

func isBriefFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "campaign_") {
		return false
	}
	return briefExtensions[strings.ToLower(filepath.Ext(base))]
}
