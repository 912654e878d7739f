package output

import (
	"fmt"
	"strings"
)

// DiagramInfo fills in the model and image names shown in the diagram.
type DiagramInfo struct {
	WriterModel   string
	ReviewerModel string
	ImageModel    string
	MaxRetries    int
}

// Diagram returns the workflow architecture as a text diagram.
func Diagram(info DiagramInfo) string {
	box := func(lines ...string) string {
		const inner = 56
		var sb strings.Builder
		sb.WriteString("  ┌" + strings.Repeat("─", inner) + "┐\n")
		for _, l := range lines {
			sb.WriteString("  │ " + pad(l, inner-2) + " │\n")
		}
		sb.WriteString("  └" + strings.Repeat("─", inner) + "┘\n")
		return sb.String()
	}
	arrow := "                            │\n                            ▼\n"

	var sb strings.Builder
	sb.WriteString(box("BRIEF", "text, file or product page URL"))
	sb.WriteString(arrow)
	sb.WriteString(box("WRITER",
		"Model: "+orDash(info.WriterModel),
		"Drafts copy, or revises it from the latest feedback",
		"Fallback: template copy"))
	sb.WriteString(arrow)
	sb.WriteString(box("REVIEWER",
		"Model: "+orDash(info.ReviewerModel),
		"APPROVED or [CLAIM] / [TONE] / [CLARITY] / [OTHER]",
		"Fallback: rule-based compliance check"))
	sb.WriteString(arrow)
	sb.WriteString(box("ROUTER",
		fmt.Sprintf("drafts > %d retries  -> art director (forced exit)", info.MaxRetries),
		"approved            -> art director",
		"otherwise           -> writer with feedback"))
	sb.WriteString(arrow)
	sb.WriteString(box("ART DIRECTOR",
		"Model: "+orDash(info.ImageModel),
		"Product photo for the approved (or last) copy",
		"Fallback: placeholder image"))
	sb.WriteString(arrow)
	sb.WriteString(box("REPORT",
		"copy, image, review history, execution log",
		"-> terminal, campaign_<id>.md, history.db, NATS, /metrics"))
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pad(s string, n int) string {
	runes := []rune(s)
	if len(runes) >= n {
		return string(runes[:n])
	}
	return s + strings.Repeat(" ", n-len(runes))
}
