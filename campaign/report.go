package campaign

import (
	"slices"
	"time"

	"github.com/c360studio/adpilot/compliance"
)

// Outcome describes how a campaign ended.
type Outcome string

const (
	// Approved: the reviewer accepted a draft.
	Approved Outcome = "approved"

	// ForcedExit: retries ran out and the image was made for the last draft.
	ForcedExit Outcome = "forced_exit"

	// Cancelled: the context ended the campaign between steps.
	Cancelled Outcome = "cancelled"
)

// Report is the terminal result of a campaign.
type Report struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt"`

	// FinalText is the approved copy, or the latest draft when not approved.
	FinalText         string `json:"final_text"`
	FinalApprovedText string `json:"final_approved_text,omitempty"`
	ImageReference    string `json:"image_reference,omitempty"`

	Approved        bool                  `json:"approved"`
	Outcome         Outcome               `json:"outcome"`
	RetryCount      int                   `json:"retry_count"`
	ReviewFeedback  []string              `json:"review_feedback"`
	ComplianceFlags []compliance.Category `json:"compliance_flags"`
	ExecutionLog    []LogEntry            `json:"execution_log"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Fallbacks counts execution log entries that used a fallback path.
func (r *Report) Fallbacks() int {
	n := 0
	for _, e := range r.ExecutionLog {
		if e.Outcome == OutcomeFallback {
			n++
		}
	}
	return n
}

// report snapshots the state. Slices are copied so the report outlives the run.
func (s *State) report(outcome Outcome, finishedAt time.Time) *Report {
	final := s.FinalApprovedText
	if final == "" {
		final = s.DraftText
	}
	return &Report{
		ID:                s.ID,
		Prompt:            s.Prompt,
		FinalText:         final,
		FinalApprovedText: s.FinalApprovedText,
		ImageReference:    s.ImageReference,
		Approved:          s.Approved,
		Outcome:           outcome,
		RetryCount:        s.RetryCount,
		ReviewFeedback:    slices.Clone(s.ReviewFeedback),
		ComplianceFlags:   slices.Clone(s.ComplianceFlags),
		ExecutionLog:      slices.Clone(s.ExecutionLog),
		StartedAt:         s.StartedAt,
		Duration:          finishedAt.Sub(s.StartedAt),
	}
}
