package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/leadmail/internal/ingest"
	"github.com/nhle/leadmail/internal/theme"
)

// Render formats a cycle report as a summary block followed by one line
// per processed message.
func Render(r *ingest.CycleReport) string {
	if r == nil {
		return theme.DimmedStyle.Render("No cycle has run yet")
	}

	var sections []string

	title := r.AccountName
	if title == "" {
		title = r.AccountID
	}
	sections = append(sections, theme.TitleStyle.Render(title))

	sections = append(sections, renderField("Started", r.Started.Local().Format("2006-01-02 15:04:05")))
	sections = append(sections, renderField("Duration", r.Duration().Round(time.Millisecond).String()))
	if !r.WindowStart.IsZero() {
		sections = append(sections, renderField("Since", r.WindowStart.Local().Format("2006-01-02 15:04")))
	}
	sections = append(sections, renderField("Found", fmt.Sprintf("%d", r.Found)))
	sections = append(sections, renderField("Stored", fmt.Sprintf(
		"%d (%d new leads, %d mass mail, %d unknown)",
		r.Stored(), r.LeadsCreated(), r.MassMail(), r.Unknown(),
	)))
	sections = append(sections, renderField("Skipped", fmt.Sprintf(
		"%d (%d duplicate, %d gone)",
		r.Skipped(), r.SkippedFor(ingest.SkipDuplicate), r.SkippedFor(ingest.SkipGone),
	)))
	sections = append(sections, renderField("Failed", fmt.Sprintf("%d", r.Failed())))
	sections = append(sections, renderField("AI items", fmt.Sprintf(
		"%d (%d classification failures)", r.Items(), r.ClassifyFailures(),
	)))

	if r.WatermarkAdvanced() {
		sections = append(sections, renderField("Watermark", r.Watermark.Local().Format("2006-01-02 15:04:05")))
	} else {
		sections = append(sections, renderField("Watermark", "held"))
	}

	if r.Err != nil {
		sections = append(sections, "", theme.ErrorStyle.Render("Aborted: "+r.Err.Error()))
	}

	if len(r.Results) > 0 {
		sections = append(sections, "", theme.TitleStyle.Render("Messages"))
		for _, res := range r.Results {
			sections = append(sections, renderResult(res))
		}
	}

	return strings.Join(sections, "\n")
}

func renderField(label, value string) string {
	labelStyle := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Width(12)
	return labelStyle.Render(label+":") + " " + value
}

func renderResult(res ingest.Result) string {
	outcome := res.Outcome.String()
	line := theme.OutcomeStyle(outcome).Render(fmt.Sprintf("%-8s", outcome))

	ref := res.MessageID
	if ref == "" {
		ref = fmt.Sprintf("uid %d", res.UID)
	}
	line += " " + ref

	var notes []string
	switch res.Outcome {
	case ingest.OutcomeSkipped:
		notes = append(notes, string(res.Skip))
	case ingest.OutcomeFailed:
		if res.Err != nil {
			notes = append(notes, res.Err.Error())
		}
		if res.Retryable {
			notes = append(notes, "retry")
		}
	case ingest.OutcomeStored:
		if res.Unknown {
			notes = append(notes, "unknown sender")
		}
		if res.LeadCreated {
			notes = append(notes, "new lead")
		}
		if res.MassMail {
			notes = append(notes, "mass mail")
		}
		if res.Items > 0 {
			notes = append(notes, fmt.Sprintf("%d items", res.Items))
		}
		if res.ClassifyErr != nil {
			notes = append(notes, "ai: "+res.ClassifyErr.Error())
		}
	}

	if len(notes) > 0 {
		line += theme.DimmedStyle.Render(" (" + strings.Join(notes, ", ") + ")")
	}
	return line
}
