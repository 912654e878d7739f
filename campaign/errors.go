package campaign

import (
	"errors"
	"fmt"
)

// ErrInvariant matches every InvariantError.
var ErrInvariant = errors.New("workflow invariant violated")

// InvariantError reports a defect in the workflow itself, such as an
// unrecognised routing decision or a run that exceeds its step ceiling.
// The campaign is aborted; it is never retried.
type InvariantError struct {
	CampaignID string
	Phase      Phase
	Reason     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("campaign %s: %v in phase %s: %s", e.CampaignID, ErrInvariant, e.Phase, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
