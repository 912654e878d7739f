// Package output renders campaign reports for people: a styled terminal
// view, a markdown file, the history table and the architecture diagram.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/c360studio/adpilot/campaign"
	"github.com/c360studio/adpilot/storage"
	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 72

// Printer writes styled output. Colors follow the writer's terminal
// capabilities, so output to a file or buffer is plain text.
type Printer struct {
	w io.Writer

	title    lipgloss.Style
	heading  lipgloss.Style
	copyBox  lipgloss.Style
	approved lipgloss.Style
	forced   lipgloss.Style
	muted    lipgloss.Style
	fallback lipgloss.Style
	success  lipgloss.Style
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:        w,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		heading:  r.NewStyle().Bold(true),
		copyBox:  r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Width(ruleWidth - 2),
		approved: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50")),
		forced:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#999999")),
		fallback: r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		success:  r.NewStyle().Foreground(lipgloss.Color("#4CAF50")),
	}
}

func (p *Printer) outcomeLabel(o campaign.Outcome) string {
	switch o {
	case campaign.Approved:
		return p.approved.Render("APPROVED")
	case campaign.ForcedExit:
		return p.forced.Render("FORCED EXIT (retry limit reached)")
	case campaign.Cancelled:
		return p.muted.Render("CANCELLED")
	case storage.OutcomeAborted:
		return p.fallback.Render("ABORTED")
	}
	return string(o)
}

// Report renders a finished campaign.
func (p *Printer) Report(r *campaign.Report) string {
	var sb strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	sb.WriteString(rule + "\n")
	sb.WriteString(p.title.Render("SOCIAL MEDIA CAMPAIGN") + "  " + p.muted.Render(r.ID) + "\n")
	sb.WriteString(rule + "\n\n")

	fmt.Fprintf(&sb, "%s %s\n", p.heading.Render("Brief:"), r.Prompt)
	fmt.Fprintf(&sb, "%s %s\n\n", p.heading.Render("Status:"), p.outcomeLabel(r.Outcome))

	sb.WriteString(p.heading.Render("Ad copy") + "\n")
	text := r.FinalText
	if text == "" {
		text = p.muted.Render("(no copy)")
	}
	sb.WriteString(p.copyBox.Render(text) + "\n\n")

	image := r.ImageReference
	if image == "" || image == campaign.PlaceholderImage {
		image = p.muted.Render("unavailable")
	}
	fmt.Fprintf(&sb, "%s %s\n\n", p.heading.Render("Image:"), image)

	sb.WriteString(p.heading.Render("Metadata") + "\n")
	fmt.Fprintf(&sb, "  Revisions:     %d\n", r.RetryCount)
	fmt.Fprintf(&sb, "  Review cycles: %d\n", len(r.ReviewFeedback))
	fmt.Fprintf(&sb, "  Steps:         %d (%d fallback)\n", len(r.ExecutionLog), r.Fallbacks())
	fmt.Fprintf(&sb, "  Duration:      %s\n", r.Duration.Round(time.Millisecond))

	if len(r.ReviewFeedback) > 0 {
		sb.WriteString("\n" + p.heading.Render("Review history") + "\n")
		for i, fb := range r.ReviewFeedback {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, fb)
		}
	}

	if len(r.ComplianceFlags) > 0 {
		flags := make([]string, len(r.ComplianceFlags))
		for i, f := range r.ComplianceFlags {
			flags[i] = string(f)
		}
		fmt.Fprintf(&sb, "\n%s %s\n", p.heading.Render("Compliance flags:"), strings.Join(flags, " "))
	}

	if len(r.ExecutionLog) > 0 {
		sb.WriteString("\n" + p.heading.Render("Execution log") + "\n")
		for _, e := range r.ExecutionLog {
			outcome := p.success.Render(string(e.Outcome))
			if e.Outcome == campaign.OutcomeFallback {
				outcome = p.fallback.Render(string(e.Outcome))
			}
			fmt.Fprintf(&sb, "  %2d  %-12s  %-16s  %s  %4d chars\n",
				e.Iteration, e.Step, e.Action, outcome, e.ResultLength)
			if e.Detail != "" {
				sb.WriteString("      " + p.muted.Render(e.Detail) + "\n")
			}
		}
	}

	sb.WriteString(rule + "\n")
	return sb.String()
}

// PrintReport writes Report(r) to the printer's writer.
func (p *Printer) PrintReport(r *campaign.Report) error {
	_, err := io.WriteString(p.w, p.Report(r))
	return err
}

// PrintHistory writes a table of stored campaigns.
func (p *Printer) PrintHistory(rows []storage.CampaignSummary) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.w, p.muted.Render("No campaigns recorded yet."))
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-36s  %-16s  %-12s  %3s  %8s  %s\n", "ID", "STARTED", "OUTCOME", "REV", "DURATION", "BRIEF")
	for _, row := range rows {
		fmt.Fprintf(&sb, "%-36s  %-16s  %-12s  %3d  %8s  %s\n",
			row.ID,
			row.StartedAt.Local().Format("2006-01-02 15:04"),
			row.Outcome,
			row.RetryCount,
			row.Duration.Round(100*time.Millisecond),
			truncate(row.Prompt, 40))
	}
	_, err := io.WriteString(p.w, sb.String())
	return err
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
