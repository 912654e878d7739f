package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/adpilot/campaign"
)

// MarkdownFileName returns the report file name for a campaign.
func MarkdownFileName(id string) string {
	return "campaign_" + id + ".md"
}

// Markdown renders a report as a markdown document.
func Markdown(r *campaign.Report) string {
	var sb strings.Builder

	sb.WriteString("# Campaign ")
	sb.WriteString(r.ID)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "- **Brief:** %s\n", oneLine(r.Prompt))
	fmt.Fprintf(&sb, "- **Outcome:** %s\n", r.Outcome)
	fmt.Fprintf(&sb, "- **Started:** %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- **Duration:** %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- **Revisions:** %d\n\n", r.RetryCount)

	sb.WriteString("## Ad Copy\n\n")
	if r.FinalText == "" {
		sb.WriteString("_No copy was produced._\n\n")
	} else {
		for _, line := range strings.Split(r.FinalText, "\n") {
			sb.WriteString("> ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if !r.Approved && r.FinalText != "" {
		sb.WriteString("_The reviewer did not approve this copy; it is the last draft._\n\n")
	}

	sb.WriteString("## Image\n\n")
	switch {
	case r.ImageReference == "" || r.ImageReference == campaign.PlaceholderImage:
		sb.WriteString("_Image unavailable._\n\n")
	case strings.HasPrefix(r.ImageReference, "http://"), strings.HasPrefix(r.ImageReference, "https://"):
		fmt.Fprintf(&sb, "![campaign image](%s)\n\n", r.ImageReference)
	default:
		fmt.Fprintf(&sb, "![campaign image](%s)\n\n", filepath.Base(r.ImageReference))
	}

	if len(r.ReviewFeedback) > 0 {
		sb.WriteString("## Review History\n\n")
		for i, fb := range r.ReviewFeedback {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, oneLine(fb))
		}
		sb.WriteString("\n")
	}

	if len(r.ExecutionLog) > 0 {
		sb.WriteString("## Execution Log\n\n")
		sb.WriteString("| # | Step | Action | Outcome | Length | Detail |\n")
		sb.WriteString("|---|------|--------|---------|--------|--------|\n")
		for _, e := range r.ExecutionLog {
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %d | %s |\n",
				e.Iteration, e.Step, e.Action, e.Outcome, e.ResultLength, escapeCell(e.Detail))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// WriteMarkdown writes the report to dir and returns the file path.
func WriteMarkdown(dir string, r *campaign.Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, MarkdownFileName(r.ID))
	if err := os.WriteFile(path, []byte(Markdown(r)), 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}
