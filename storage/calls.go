package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/adpilot/llm"
)

// RecordCall stores one LLM call record.
func (s *Store) RecordCall(ctx context.Context, rec *llm.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || strings.TrimSpace(rec.RequestID) == "" {
		return fmt.Errorf("request id is required")
	}

	messages, err := json.Marshal(nonNil(rec.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	fallbacks, err := json.Marshal(nonNil(rec.FallbacksUsed))
	if err != nil {
		return fmt.Errorf("encode fallbacks: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO llm_calls (
		   request_id, campaign_id, capability, model, provider, messages,
		   response, prompt_tokens, completion_tokens, total_tokens, finish_reason,
		   error, error_kind, retries, fallbacks_used, started_at, completed_at, duration_ms
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.CampaignID,
		rec.Capability,
		rec.Model,
		rec.Provider,
		string(messages),
		rec.Response,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.FinishReason,
		rec.Error,
		string(rec.ErrorKind),
		rec.Retries,
		string(fallbacks),
		toMillis(rec.StartedAt),
		toMillis(rec.CompletedAt),
		rec.DurationMs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: call %s", ErrAlreadyExists, rec.RequestID)
		}
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// CallsForCampaign returns the calls made for a campaign in start order.
func (s *Store) CallsForCampaign(ctx context.Context, campaignID string) ([]llm.CallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, campaign_id, capability, model, provider, messages,
		        response, prompt_tokens, completion_tokens, total_tokens, finish_reason,
		        error, error_kind, retries, fallbacks_used, started_at, completed_at, duration_ms
		   FROM llm_calls
		  WHERE campaign_id = ?
		  ORDER BY started_at, request_id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var out []llm.CallRecord
	for rows.Next() {
		var (
			rec                    llm.CallRecord
			messages, fallbacks    string
			errorKind              string
			startedAt, completedAt int64
		)
		if err := rows.Scan(
			&rec.RequestID, &rec.CampaignID, &rec.Capability, &rec.Model, &rec.Provider, &messages,
			&rec.Response, &rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.FinishReason,
			&rec.Error, &errorKind, &rec.Retries, &fallbacks, &startedAt, &completedAt, &rec.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if err := json.Unmarshal([]byte(messages), &rec.Messages); err != nil {
			return nil, fmt.Errorf("decode messages: %w", err)
		}
		if err := json.Unmarshal([]byte(fallbacks), &rec.FallbacksUsed); err != nil {
			return nil, fmt.Errorf("decode fallbacks: %w", err)
		}
		rec.ErrorKind = llm.ErrorKind(errorKind)
		rec.StartedAt = fromMillis(startedAt)
		rec.CompletedAt = fromMillis(completedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	return out, nil
}

// CallStats summarises token use across a campaign's calls.
type CallStats struct {
	Calls        int
	Failed       int
	TotalTokens  int
	TotalRetries int
}

// StatsForCampaign aggregates the campaign's call records.
func (s *Store) StatsForCampaign(ctx context.Context, campaignID string) (CallStats, error) {
	var st CallStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(total_tokens), 0),
		        COALESCE(SUM(retries), 0)
		   FROM llm_calls WHERE campaign_id = ?`, campaignID).
		Scan(&st.Calls, &st.Failed, &st.TotalTokens, &st.TotalRetries)
	if err != nil {
		return CallStats{}, fmt.Errorf("call stats: %w", err)
	}
	return st, nil
}
