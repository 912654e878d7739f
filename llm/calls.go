package llm

import (
	"context"
	"errors"
	"time"
)

// CallRecord describes a single completion request, successful or not.
type CallRecord struct {
	// RequestID uniquely identifies this call.
	RequestID string `json:"request_id"`

	// CampaignID correlates the call with the campaign that issued it.
	CampaignID string `json:"campaign_id,omitempty"`

	// Capability is the semantic capability requested.
	Capability string `json:"capability"`

	// Model and Provider identify the endpoint that answered, or the last
	// endpoint tried when every endpoint failed.
	Model    string `json:"model"`
	Provider string `json:"provider"`

	// Messages is the input sent to the model.
	Messages []Message `json:"messages"`

	// Response is the generated content.
	Response string `json:"response"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	FinishReason string    `json:"finish_reason"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
	DurationMs   int64     `json:"duration_ms"`

	// Error and ErrorKind are set when the call failed.
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Retries is the number of retry attempts across all endpoints.
	Retries int `json:"retries"`

	// FallbacksUsed lists endpoints that failed before the final outcome.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`
}

// CallRecorder persists call records. Implementations must be safe for
// concurrent use.
type CallRecorder interface {
	RecordCall(ctx context.Context, record *CallRecord) error
}

type campaignIDKey struct{}

// WithCampaignID returns a context whose completion calls are attributed to
// the given campaign.
func WithCampaignID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, campaignIDKey{}, id)
}

// CampaignIDFrom returns the campaign ID stored in ctx, if any.
func CampaignIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(campaignIDKey{}).(string)
	return id
}

// MultiRecorder fans a record out to several recorders. Every recorder is
// called; the returned error joins their failures.
type MultiRecorder []CallRecorder

// RecordCall implements CallRecorder.
func (m MultiRecorder) RecordCall(ctx context.Context, record *CallRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordCall(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
