// Package compliance implements the rule-based copy checker used when the
// reviewing model is unavailable. It has no external dependencies and no I/O.
package compliance

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Category is a compliance issue tag. Reviewer feedback starts with one of
// these tags when a draft is rejected.
type Category string

const (
	// CategoryClaim flags unverifiable or absolute claims.
	CategoryClaim Category = "[CLAIM]"

	// CategoryTone flags language that breaks the positive brand voice.
	CategoryTone Category = "[TONE]"

	// CategoryClarity flags copy that is unclear or too long for the channel.
	CategoryClarity Category = "[CLARITY]"

	// CategoryOther is used for any issue that carries no recognised tag.
	CategoryOther Category = "[OTHER]"
)

// Categories lists every known tag in reporting order.
var Categories = []Category{CategoryClaim, CategoryTone, CategoryClarity, CategoryOther}

// Approved is the verdict token returned when no issue is found.
const Approved = "APPROVED"

// MaxLength is the social-media character limit enforced by the checker.
const MaxLength = 280

// BlockedPhrases are unverifiable-claim phrases, scanned in order. Matching is
// case-insensitive substring containment; the first hit names the feedback.
var BlockedPhrases = []string{
	"100%",
	"guarantee",
	"guaranteed",
	"miracle",
	"instant results",
	"best in the world",
	"never",
	"always works",
	"scientifically proven",
	"approved by",
	"clinically tested",
}

// NegativeWords break the energetic, positive brand voice.
var NegativeWords = []string{"toxic", "harmful", "dangerous", "problem", "issue"}

// Issue is a single finding.
type Issue struct {
	Category Category `json:"category"`
	// Phrase is the offending phrase, empty for length issues.
	Phrase  string `json:"phrase,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of a check.
type Result struct {
	Passed bool    `json:"passed"`
	Issues []Issue `json:"issues,omitempty"`
}

// Feedback returns the reviewer-style feedback sentence for the result:
// the first issue's message, or Approved when the text passed.
func (r Result) Feedback() string {
	if r.Passed || len(r.Issues) == 0 {
		return Approved
	}
	return r.Issues[0].Message
}

// Check runs the blocklist, tone and length rules against text.
// Blocked phrases are reported before tone and length issues; only the first
// blocked phrase found produces an issue.
func Check(text string) Result {
	lower := strings.ToLower(text)
	var issues []Issue

	for _, phrase := range BlockedPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, Issue{
				Category: CategoryClaim,
				Phrase:   phrase,
				Message:  claimMessage(phrase),
			})
			break
		}
	}

	for _, word := range NegativeWords {
		if strings.Contains(lower, word) {
			issues = append(issues, Issue{
				Category: CategoryTone,
				Phrase:   word,
				Message:  fmt.Sprintf("%s Avoid negative language such as '%s'", CategoryTone, word),
			})
			break
		}
	}

	if utf8.RuneCountInString(text) > MaxLength {
		issues = append(issues, Issue{
			Category: CategoryClarity,
			Message:  fmt.Sprintf("%s Keep under %d characters for social media", CategoryClarity, MaxLength),
		})
	}

	return Result{Passed: len(issues) == 0, Issues: issues}
}

// claimMessage names the blocked phrase, except for endorsement phrases that
// contain the verdict token: quoting those would read as an approval.
func claimMessage(phrase string) string {
	if strings.Contains(strings.ToUpper(phrase), Approved) {
		return fmt.Sprintf("%s Remove the unverified endorsement claim", CategoryClaim)
	}
	return fmt.Sprintf("%s Remove unverified claim: '%s'", CategoryClaim, phrase)
}

// CategoryOf extracts the leading tag from reviewer feedback. Feedback with
// no recognised tag is CategoryOther.
func CategoryOf(feedback string) Category {
	trimmed := strings.ToUpper(strings.TrimSpace(feedback))
	trimmed = strings.TrimLeft(trimmed, "\"'*- ")
	for _, c := range Categories {
		if strings.HasPrefix(trimmed, string(c)) {
			return c
		}
	}
	return CategoryOther
}
