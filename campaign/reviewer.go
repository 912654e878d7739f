package campaign

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360studio/adpilot/compliance"
)

// Reviewer judges the current draft.
type Reviewer struct {
	text   TextGenerator
	params TextParams
	logger *slog.Logger
}

// NewReviewer creates the reviewer step. text may be nil, in which case the
// rule-based checker judges every draft.
func NewReviewer(text TextGenerator, params TextParams, logger *slog.Logger) *Reviewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{text: text, params: params, logger: logger}
}

// Run returns the verdict for s.DraftText.
func (r *Reviewer) Run(ctx context.Context, s *State) Update {
	feedback, err := r.review(ctx, s.DraftText)
	outcome := OutcomeSuccess
	var detail string

	if err != nil {
		r.logger.Warn("Reviewer falling back to rule-based checker",
			"campaign_id", s.ID,
			"error", err)

		feedback = compliance.Check(s.DraftText).Feedback()
		outcome = OutcomeFallback
		detail = err.Error()
	}

	return Update{
		Step:     StepReviewer,
		Feedback: feedback,
		Approved: IsApproval(feedback),
		Entry: LogEntry{
			Action:       "compliance_check",
			Outcome:      outcome,
			ResultLength: runeLen(feedback),
			Detail:       detail,
		},
	}
}

func (r *Reviewer) review(ctx context.Context, draft string) (string, error) {
	if r.text == nil {
		return "", errNoTextGenerator
	}
	out, err := r.text.GenerateText(ctx, TextRequest{
		Instructions: ReviewerInstructions(),
		Context:      ReviewerContext(draft),
		Params:       r.params,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}
