package campaign

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// errNoTextGenerator is logged when a step runs without a text service.
var errNoTextGenerator = errors.New("text generator not configured")

// errEmptyCompletion is logged when the service answered with nothing usable.
var errEmptyCompletion = errors.New("empty completion")

// Writer drafts and revises the ad copy.
type Writer struct {
	text   TextGenerator
	params TextParams
	logger *slog.Logger
}

// NewWriter creates the writer step. text may be nil, in which case every
// draft comes from the fallback template.
func NewWriter(text TextGenerator, params TextParams, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{text: text, params: params, logger: logger}
}

// Run produces a draft, or a revision when the state carries feedback.
// It never fails: service errors switch to the template.
func (w *Writer) Run(ctx context.Context, s *State) Update {
	revision := len(s.ReviewFeedback) > 0

	req := TextRequest{
		Instructions: WriterInstructions(),
		Context:      WriterDraftContext(s.Prompt),
		Params:       w.params,
	}
	action := "copy_generation"
	if revision {
		req.Context = WriterRevisionContext(s.Prompt, s.LatestFeedback(), s.DraftText)
		action = "copy_revision"
	}

	draft, err := w.generate(ctx, req)
	if err != nil {
		w.logger.Warn("Writer falling back to template",
			"campaign_id", s.ID,
			"revision", revision,
			"error", err)

		draft = FallbackDraft(s.Prompt, revision)
		return Update{
			Step:     StepWriter,
			Draft:    draft,
			Revision: revision,
			Entry: LogEntry{
				Action:       action,
				Outcome:      OutcomeFallback,
				ResultLength: runeLen(draft),
				Detail:       err.Error(),
			},
		}
	}

	return Update{
		Step:     StepWriter,
		Draft:    draft,
		Revision: revision,
		Entry: LogEntry{
			Action:       action,
			Outcome:      OutcomeSuccess,
			ResultLength: runeLen(draft),
		},
	}
}

func (w *Writer) generate(ctx context.Context, req TextRequest) (string, error) {
	if w.text == nil {
		return "", errNoTextGenerator
	}
	out, err := w.text.GenerateText(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}
