package compliance_test

import (
	"strings"
	"testing"

	"github.com/c360studio/adpilot/compliance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_BlockedPhrase(t *testing.T) {
	res := compliance.Check("100% guaranteed to work")

	require.False(t, res.Passed)
	require.NotEmpty(t, res.Issues)
	assert.Equal(t, compliance.CategoryClaim, res.Issues[0].Category)
	assert.Equal(t, "100%", res.Issues[0].Phrase)
	assert.True(t, strings.HasPrefix(res.Feedback(), "[CLAIM]"))
	assert.Contains(t, res.Feedback(), "'100%'")
}

func TestCheck_Compliant(t *testing.T) {
	res := compliance.Check("Keeps drinks cold for 24 hours")

	assert.True(t, res.Passed)
	assert.Empty(t, res.Issues)
	assert.Equal(t, compliance.Approved, res.Feedback())
}

func TestCheck_FirstMatchOrder(t *testing.T) {
	// "miracle" comes before "never" in the blocklist regardless of text order.
	res := compliance.Check("Never thirsty again with this miracle bottle")

	require.False(t, res.Passed)
	assert.Equal(t, "miracle", res.Issues[0].Phrase)
}

func TestCheck_CaseInsensitive(t *testing.T) {
	res := compliance.Check("SCIENTIFICALLY PROVEN hydration")

	require.False(t, res.Passed)
	assert.Equal(t, "scientifically proven", res.Issues[0].Phrase)
}

func TestCheck_ToneAndLength(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category compliance.Category
	}{
		{"negative word", "No more toxic plastic in your bag", compliance.CategoryTone},
		{"too long", strings.Repeat("Bamboo bottle. ", 20), compliance.CategoryClarity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compliance.Check(tt.text)
			require.False(t, res.Passed)
			assert.Equal(t, tt.category, res.Issues[0].Category)
			assert.True(t, strings.HasPrefix(res.Feedback(), string(tt.category)))
		})
	}
}

func TestCheck_ClaimReportedBeforeTone(t *testing.T) {
	res := compliance.Check("Guaranteed to fix every problem")

	require.Len(t, res.Issues, 2)
	assert.Equal(t, compliance.CategoryClaim, res.Issues[0].Category)
	assert.Equal(t, compliance.CategoryTone, res.Issues[1].Category)
}

func TestCheck_EndorsementClaim(t *testing.T) {
	res := compliance.Check("Dermatologist approved by experts")

	require.False(t, res.Passed)
	assert.Equal(t, compliance.CategoryClaim, res.Issues[0].Category)
	assert.Equal(t, "approved by", res.Issues[0].Phrase)
	assert.True(t, strings.HasPrefix(res.Feedback(), "[CLAIM]"))
	assert.NotContains(t, strings.ToUpper(res.Feedback()), compliance.Approved)
}

func TestCheck_FeedbackNeverLooksApproved(t *testing.T) {
	for _, phrase := range compliance.BlockedPhrases {
		res := compliance.Check("Our bottle: " + phrase)
		assert.NotContains(t, strings.ToUpper(res.Feedback()), compliance.Approved, phrase)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		feedback string
		want     compliance.Category
	}{
		{"[CLAIM] Remove '100%' - it's unverified", compliance.CategoryClaim},
		{"[tone] Make it more energetic", compliance.CategoryTone},
		{"  \"[CLARITY] Specify what eco-friendly means\"", compliance.CategoryClarity},
		{"[OTHER] Add a call to action", compliance.CategoryOther},
		{"Please shorten it", compliance.CategoryOther},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, compliance.CategoryOf(tt.feedback), tt.feedback)
	}
}
