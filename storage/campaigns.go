package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/compliance"
)

// CampaignSummary is one row of the history listing.
type CampaignSummary struct {
	ID         string
	Prompt     string
	Outcome    campaign.Outcome
	Approved   bool
	RetryCount int
	StartedAt  time.Time
	Duration   time.Duration
	Error      string
}

// DefaultListLimit bounds ListCampaigns when no limit is given.
const DefaultListLimit = 20

// SaveReport stores a finished campaign and its execution log. Saving the
// same campaign again replaces the report.
func (s *Store) SaveReport(ctx context.Context, r *campaign.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r == nil || strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("campaign id is required")
	}

	feedback, err := json.Marshal(nonNil(r.ReviewFeedback))
	if err != nil {
		return fmt.Errorf("encode review feedback: %w", err)
	}
	flags, err := json.Marshal(nonNil(r.ComplianceFlags))
	if err != nil {
		return fmt.Errorf("encode compliance flags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save report: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO campaigns (
		   id, prompt, final_text, final_approved_text, image_reference,
		   approved, outcome, retry_count, review_feedback, compliance_flags,
		   error, started_at, duration_ms
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   prompt = excluded.prompt,
		   final_text = excluded.final_text,
		   final_approved_text = excluded.final_approved_text,
		   image_reference = excluded.image_reference,
		   approved = excluded.approved,
		   outcome = excluded.outcome,
		   retry_count = excluded.retry_count,
		   review_feedback = excluded.review_feedback,
		   compliance_flags = excluded.compliance_flags,
		   error = '',
		   started_at = excluded.started_at,
		   duration_ms = excluded.duration_ms`,
		r.ID,
		r.Prompt,
		r.FinalText,
		r.FinalApprovedText,
		r.ImageReference,
		boolToInt(r.Approved),
		string(r.Outcome),
		r.RetryCount,
		string(feedback),
		string(flags),
		toMillis(r.StartedAt),
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}

	for _, entry := range r.ExecutionLog {
		if err := insertStep(ctx, tx, r.ID, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save report: %w", err)
	}
	return nil
}

// MarkAborted records a campaign that ended without a report. An existing
// report is left untouched.
func (s *Store) MarkAborted(ctx context.Context, id string, cause error) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("campaign id is required")
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, outcome, error, started_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, string(OutcomeAborted), msg, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("mark campaign aborted: %w", err)
	}
	return nil
}

func (s *Store) saveStep(ctx context.Context, campaignID string, entry campaign.LogEntry) error {
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	return insertStep(ctx, s.db, campaignID, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertStep(ctx context.Context, db execer, campaignID string, e campaign.LogEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO campaign_steps (
		   campaign_id, iteration, step, action, outcome, result_length, detail, recorded_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(campaign_id, iteration) DO NOTHING`,
		campaignID,
		e.Iteration,
		string(e.Step),
		e.Action,
		string(e.Outcome),
		e.ResultLength,
		e.Detail,
		toMillis(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("save step %d: %w", e.Iteration, err)
	}
	return nil
}

// GetCampaign loads a stored report with its execution log.
func (s *Store) GetCampaign(ctx context.Context, id string) (*campaign.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		r                campaign.Report
		approved         int
		outcome          string
		feedback, flags  string
		startedAt, durMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, prompt, final_text, final_approved_text, image_reference,
		        approved, outcome, retry_count, review_feedback, compliance_flags,
		        started_at, duration_ms
		   FROM campaigns WHERE id = ?`, id).Scan(
		&r.ID, &r.Prompt, &r.FinalText, &r.FinalApprovedText, &r.ImageReference,
		&approved, &outcome, &r.RetryCount, &feedback, &flags,
		&startedAt, &durMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	r.Approved = approved != 0
	r.Outcome = campaign.Outcome(outcome)
	r.StartedAt = fromMillis(startedAt)
	r.Duration = time.Duration(durMs) * time.Millisecond
	if err := json.Unmarshal([]byte(feedback), &r.ReviewFeedback); err != nil {
		return nil, fmt.Errorf("decode review feedback: %w", err)
	}
	var rawFlags []compliance.Category
	if err := json.Unmarshal([]byte(flags), &rawFlags); err != nil {
		return nil, fmt.Errorf("decode compliance flags: %w", err)
	}
	r.ComplianceFlags = rawFlags

	r.ExecutionLog, err = s.steps(ctx, id)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) steps(ctx context.Context, campaignID string) ([]campaign.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT iteration, step, action, outcome, result_length, detail, recorded_at
		   FROM campaign_steps WHERE campaign_id = ? ORDER BY iteration`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var entries []campaign.LogEntry
	for rows.Next() {
		var (
			e             campaign.LogEntry
			step, outcome string
			recordedAt    int64
		)
		if err := rows.Scan(&e.Iteration, &step, &e.Action, &outcome, &e.ResultLength, &e.Detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		e.Step = campaign.StepName(step)
		e.Outcome = campaign.StepOutcome(outcome)
		e.Timestamp = fromMillis(recordedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return entries, nil
}

// ListCampaigns returns the most recent campaigns first. limit <= 0 uses
// DefaultListLimit.
func (s *Store) ListCampaigns(ctx context.Context, limit int) ([]CampaignSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, outcome, approved, retry_count, started_at, duration_ms, error
		   FROM campaigns
		  ORDER BY started_at DESC, id
		  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []CampaignSummary
	for rows.Next() {
		var (
			c                CampaignSummary
			outcome          string
			approved         int
			startedAt, durMs int64
		)
		if err := rows.Scan(&c.ID, &c.Prompt, &outcome, &approved, &c.RetryCount, &startedAt, &durMs, &c.Error); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.Outcome = campaign.Outcome(outcome)
		c.Approved = approved != 0
		c.StartedAt = fromMillis(startedAt)
		c.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
