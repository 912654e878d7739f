package campaign

import (
	"context"
	"errors"
	"log/slog"
)

// PlaceholderImage is the image reference used when no image could be made.
const PlaceholderImage = "placeholder://image-unavailable"

var errNoImageGenerator = errors.New("image generator not configured")

// ArtDirector produces the campaign image.
type ArtDirector struct {
	images ImageGenerator
	store  ImageStore
	style  string
	logger *slog.Logger
}

// NewArtDirector creates the art director step. images and store may be nil;
// the step then returns PlaceholderImage or, for URL results, the URL.
func NewArtDirector(images ImageGenerator, store ImageStore, style string, logger *slog.Logger) *ArtDirector {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtDirector{images: images, store: store, style: style, logger: logger}
}

// SourceText is the copy the image illustrates: the approved text, or the
// latest draft after a forced exit.
func SourceText(s *State) string {
	if s.FinalApprovedText != "" {
		return s.FinalApprovedText
	}
	return s.DraftText
}

// Run generates and stores the image.
func (a *ArtDirector) Run(ctx context.Context, s *State) Update {
	prompt := ImagePrompt(s.Prompt, SourceText(s), a.style)

	ref, err := a.generate(ctx, s.ID, prompt)
	if err != nil {
		a.logger.Warn("Art director using placeholder image",
			"campaign_id", s.ID,
			"error", err)

		return Update{
			Step:           StepArtDirector,
			ImageReference: PlaceholderImage,
			Entry: LogEntry{
				Action:       "image_generation",
				Outcome:      OutcomeFallback,
				ResultLength: runeLen(PlaceholderImage),
				Detail:       err.Error(),
			},
		}
	}

	return Update{
		Step:           StepArtDirector,
		ImageReference: ref,
		Entry: LogEntry{
			Action:       "image_generation",
			Outcome:      OutcomeSuccess,
			ResultLength: runeLen(ref),
		},
	}
}

func (a *ArtDirector) generate(ctx context.Context, id, prompt string) (string, error) {
	if a.images == nil {
		return "", errNoImageGenerator
	}

	img, err := a.images.GenerateImage(ctx, prompt)
	if err != nil {
		return "", err
	}
	if img == nil {
		return "", errors.New("image generator returned no image")
	}

	if a.store == nil {
		if img.URL != "" {
			return img.URL, nil
		}
		return "", errors.New("no image store configured for image bytes")
	}
	return a.store.Save(id, img)
}
