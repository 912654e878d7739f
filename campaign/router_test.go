package campaign_test

import (
	"testing"

	"github.com/c360studio/adpilot/campaign"
	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name       string
		feedback   string
		attempts   int
		maxRetries int
		want       campaign.Decision
	}{
		{"approved", "APPROVED", 0, 3, campaign.GenerateImage},
		{"rejected within budget", "[CLAIM] x", 1, 3, campaign.ReviseWriter},
		{"rejected past budget", "[CLAIM] x", 4, 3, campaign.GenerateImage},
		{"rejected at budget", "[TONE] x", 3, 3, campaign.ReviseWriter},
		{"approved lower case with note", "approved - looks great", 1, 3, campaign.GenerateImage},
		{"zero retries forces after first draft", "[CLAIM] x", 1, 0, campaign.GenerateImage},
		{"empty feedback", "", 1, 3, campaign.ReviseWriter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, campaign.Route(tt.feedback, tt.attempts, tt.maxRetries))
		})
	}
}

func TestRoute_Pure(t *testing.T) {
	for range 3 {
		assert.Equal(t, campaign.ReviseWriter, campaign.Route("[OTHER] add a call to action", 2, 3))
	}
}

func TestIsApproval(t *testing.T) {
	assert.True(t, campaign.IsApproval("APPROVED"))
	assert.True(t, campaign.IsApproval("  Approved."))
	assert.False(t, campaign.IsApproval("[CLAIM] Remove '100%'"))
	assert.False(t, campaign.IsApproval(""))
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "revise_writer", campaign.ReviseWriter.String())
	assert.Equal(t, "generate_image", campaign.GenerateImage.String())
	assert.Equal(t, "unknown", campaign.Decision(42).String())
}
