package campaign

import (
	"fmt"
	"strings"
)

// WriterInstructions returns the system prompt for the copywriter step.
func WriterInstructions() string {
	return `You are an exceptional copywriter specializing in social media advertising.

Write compelling, energetic ad copy of 2-3 lines that:
- Captures attention immediately
- Is specific about product benefits, with no vague claims
- Uses engaging language; emojis are welcome
- Fits a Twitter or Instagram post
- Avoids unverifiable superlatives such as "100%", "guaranteed" or "miracle"

Write ONLY the ad copy, no explanations.`
}

// WriterDraftContext asks for a first draft.
func WriterDraftContext(product string) string {
	return fmt.Sprintf("Create an engaging social media ad for: %s", product)
}

// WriterRevisionContext asks for a revision addressing the latest feedback.
func WriterRevisionContext(product, feedback, previousDraft string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create an engaging social media ad for: %s\n\n", product)
	fmt.Fprintf(&sb, "Previous draft:\n%s\n\n", previousDraft)
	fmt.Fprintf(&sb, "Reviewer feedback: %s\n", feedback)
	sb.WriteString("Please revise the draft to address the feedback.")
	return sb.String()
}

// ReviewerInstructions returns the system prompt for the compliance reviewer.
func ReviewerInstructions() string {
	return `You are a strict legal and brand compliance officer for social media ads.

Check the ad copy for:
1. Unverified claims ("100%", "guaranteed", "best", "miracle", "scientifically proven")
2. Brand voice: energetic, positive, authentic
3. Clarity and concision
4. Misleading statements

Respond in exactly one of these ways:

- If the copy is compliant, reply with only the word APPROVED.
- Otherwise give ONE specific, actionable sentence that starts with the issue
  type: [CLAIM], [TONE], [CLARITY] or [OTHER].

Example rejections:
- [CLAIM] Remove '100%' - it's unverified
- [TONE] Make it more energetic
- [CLARITY] Specify what 'eco-friendly' means`
}

// ReviewerContext presents a draft for review.
func ReviewerContext(draft string) string {
	return fmt.Sprintf("Review this ad copy: %q\n\nIs it compliant and ready to publish?", draft)
}

// DefaultImageStyle describes the look of generated product shots.
const DefaultImageStyle = "High-quality, clean background, vibrant colors, modern marketing aesthetic. 4K, studio lighting, professional product shot."

// ImagePrompt builds the art director's image generation prompt.
func ImagePrompt(product, copyText, style string) string {
	if style == "" {
		style = DefaultImageStyle
	}
	var sb strings.Builder
	sb.WriteString("Professional product photography and marketing design. ")
	fmt.Fprintf(&sb, "Product: %s. ", product)
	if copyText != "" {
		fmt.Fprintf(&sb, "Campaign message: %s ", copyText)
	}
	fmt.Fprintf(&sb, "Style: %s", style)
	return sb.String()
}

// fallbackProductRunes is how much of the prompt the templates quote.
const fallbackProductRunes = 40

// FallbackDraft returns the deterministic copy used when the text service is
// unavailable.
func FallbackDraft(product string, revision bool) string {
	short := product
	if r := []rune(product); len(r) > fallbackProductRunes {
		short = string(r[:fallbackProductRunes])
	}
	if revision {
		return fmt.Sprintf("🌟 Discover %s! Eco-conscious. Quality crafted. Get yours now! 💚", short)
	}
	return fmt.Sprintf("✨ NEW: %s! Perfect for the modern lifestyle. Shop today! 🚀", short)
}
