// Package storage keeps the campaign history in a SQLite database: finished
// campaign reports, their step log and every LLM call made on their behalf.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/llm"
	"github.com/c360studio/adpilot/storage/migrations"

	_ "modernc.org/sqlite"
)

// OutcomeAborted marks a campaign that ended with an invariant error and so
// produced no report.
const OutcomeAborted campaign.Outcome = "aborted"

// Store persists campaign history in SQLite. It records LLM calls as an
// llm.CallRecorder and campaign progress as a campaign.Observer.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for observer write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens or creates the history database at path and applies the
// embedded migrations. The parent directory is created if needed.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OnStep stores the step's log entry so partial runs stay inspectable.
func (s *Store) OnStep(ctx context.Context, ev campaign.StepEvent) {
	if err := s.saveStep(context.WithoutCancel(ctx), ev.CampaignID, ev.Entry); err != nil {
		s.logger.Warn("Failed to store campaign step",
			"campaign_id", ev.CampaignID,
			"iteration", ev.Entry.Iteration,
			"error", err)
	}
}

// OnFinish stores the report, or an aborted marker when the run failed.
func (s *Store) OnFinish(ctx context.Context, report *campaign.Report, runErr error) {
	ctx = context.WithoutCancel(ctx)

	var err error
	campaignID := llm.CampaignIDFrom(ctx)
	switch {
	case runErr != nil:
		var invErr *campaign.InvariantError
		if errors.As(runErr, &invErr) && invErr.CampaignID != "" {
			campaignID = invErr.CampaignID
		}
		if campaignID == "" {
			return
		}
		err = s.MarkAborted(ctx, campaignID, runErr)
	case report != nil:
		campaignID = report.ID
		err = s.SaveReport(ctx, report)
	}
	if err != nil {
		s.logger.Warn("Failed to store campaign",
			"campaign_id", campaignID,
			"error", err)
	}
}

var (
	_ llm.CallRecorder  = (*Store)(nil)
	_ campaign.Observer = (*Store)(nil)
)
