// Package events publishes campaign progress to NATS so other services can
// follow campaigns as they run.
//
// Subjects, relative to the configured prefix:
//
//	<prefix>.campaign.step.<step>   one message per folded step
//	<prefix>.campaign.completed     the final report summary
//	<prefix>.campaign.aborted       a campaign stopped by an invariant error
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/llm"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "adpilot"

// Conn is the part of a NATS connection the publisher needs.
// *nats.Conn satisfies it.
type Conn interface {
	Publish(subject string, data []byte) error
}

// StepMessage is published after every step.
type StepMessage struct {
	CampaignID   string               `json:"campaign_id"`
	Step         campaign.StepName    `json:"step"`
	Action       string               `json:"action"`
	Outcome      campaign.StepOutcome `json:"outcome"`
	Iteration    int                  `json:"iteration"`
	ResultLength int                  `json:"result_length"`
	Detail       string               `json:"detail,omitempty"`
	Next         campaign.Phase       `json:"next"`
	RetryCount   int                  `json:"retry_count"`
	Approved     bool                 `json:"approved"`
	Timestamp    time.Time            `json:"timestamp"`
}

// CompletedMessage summarises a finished campaign.
type CompletedMessage struct {
	CampaignID     string           `json:"campaign_id"`
	Prompt         string           `json:"prompt"`
	Outcome        campaign.Outcome `json:"outcome"`
	Approved       bool             `json:"approved"`
	RetryCount     int              `json:"retry_count"`
	FinalText      string           `json:"final_text"`
	ImageReference string           `json:"image_reference"`
	Fallbacks      int              `json:"fallbacks"`
	DurationMs     int64            `json:"duration_ms"`
}

// AbortedMessage reports a campaign that ended with an error.
type AbortedMessage struct {
	CampaignID string `json:"campaign_id"`
	Error      string `json:"error"`
}

// Publisher is a campaign.Observer that publishes to NATS. Publish failures
// are logged and never affect the campaign.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithSubjectPrefix sets the subject prefix.
func WithSubjectPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a Publisher on conn.
func NewPublisher(conn Conn, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// StepSubject returns the subject for a step event.
func (p *Publisher) StepSubject(step campaign.StepName) string {
	return p.prefix + ".campaign.step." + string(step)
}

// CompletedSubject returns the subject for completed campaigns.
func (p *Publisher) CompletedSubject() string {
	return p.prefix + ".campaign.completed"
}

// AbortedSubject returns the subject for aborted campaigns.
func (p *Publisher) AbortedSubject() string {
	return p.prefix + ".campaign.aborted"
}

// AllSubjects returns a wildcard matching every campaign subject.
func (p *Publisher) AllSubjects() string {
	return p.prefix + ".campaign.>"
}

// OnStep publishes a StepMessage.
func (p *Publisher) OnStep(_ context.Context, ev campaign.StepEvent) {
	p.publish(p.StepSubject(ev.Entry.Step), ev.CampaignID, StepMessage{
		CampaignID:   ev.CampaignID,
		Step:         ev.Entry.Step,
		Action:       ev.Entry.Action,
		Outcome:      ev.Entry.Outcome,
		Iteration:    ev.Entry.Iteration,
		ResultLength: ev.Entry.ResultLength,
		Detail:       ev.Entry.Detail,
		Next:         ev.Next,
		RetryCount:   ev.RetryCount,
		Approved:     ev.Approved,
		Timestamp:    ev.Entry.Timestamp,
	})
}

// OnFinish publishes a CompletedMessage, or an AbortedMessage when err is set.
func (p *Publisher) OnFinish(ctx context.Context, report *campaign.Report, err error) {
	if err != nil {
		id := llm.CampaignIDFrom(ctx)
		var invErr *campaign.InvariantError
		if errors.As(err, &invErr) && invErr.CampaignID != "" {
			id = invErr.CampaignID
		}
		p.publish(p.AbortedSubject(), id, AbortedMessage{CampaignID: id, Error: err.Error()})
		return
	}
	if report == nil {
		return
	}
	p.publish(p.CompletedSubject(), report.ID, CompletedMessage{
		CampaignID:     report.ID,
		Prompt:         report.Prompt,
		Outcome:        report.Outcome,
		Approved:       report.Approved,
		RetryCount:     report.RetryCount,
		FinalText:      report.FinalText,
		ImageReference: report.ImageReference,
		Fallbacks:      report.Fallbacks(),
		DurationMs:     report.Duration.Milliseconds(),
	})
}

func (p *Publisher) publish(subject, campaignID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("Failed to encode campaign event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish campaign event",
			"subject", subject,
			"campaign_id", campaignID,
			"error", err)
	}
}

var _ campaign.Observer = (*Publisher)(nil)
