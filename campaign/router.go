package campaign

// Decision is the router's choice after a review.
type Decision int

const (
	// DecisionUnknown is the zero value and never returned by Route.
	DecisionUnknown Decision = iota

	// ReviseWriter sends the draft back to the writer with the feedback.
	ReviseWriter

	// GenerateImage moves on to the art director.
	GenerateImage
)

func (d Decision) String() string {
	switch d {
	case ReviseWriter:
		return "revise_writer"
	case GenerateImage:
		return "generate_image"
	default:
		return "unknown"
	}
}

// RouteFunc decides the next step from the latest feedback, the number of
// drafts written so far and the retry ceiling.
type RouteFunc func(latestFeedback string, attempts, maxRetries int) Decision

// Route is the default RouteFunc. Running out of attempts forces the image
// step even when the draft was never approved.
func Route(latestFeedback string, attempts, maxRetries int) Decision {
	if attempts > maxRetries {
		return GenerateImage
	}
	if IsApproval(latestFeedback) {
		return GenerateImage
	}
	return ReviseWriter
}
