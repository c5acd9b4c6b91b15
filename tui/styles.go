package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/linkscout/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// categoryOrder is the display order, most actionable first.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryUnknown,
}

type brokenRow struct {
	page string
	link result.LinkReport
}

// RenderSummary produces a Lip Gloss styled summary of a run.
func RenderSummary(res *result.Result) string {
	if res == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder

	for _, p := range res.Pages {
		if p.Error != "" {
			builder.WriteString(errorStyle.Render(fmt.Sprintf("Page %s could not be audited: %s", p.URL, p.Error)))
			builder.WriteString("\n")
		}
	}

	if !res.HasBroken() {
		builder.WriteString(successStyle.Render("No broken links found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Audited %d pages, checked %d URLs in %s",
			res.Stats.PagesAudited,
			res.Stats.TotalChecked,
			res.Stats.Duration.Round(time.Millisecond),
		)))
		builder.WriteString("\n")
		writeWarnings(&builder, res)
		return builder.String()
	}

	grouped := make(map[result.ErrorCategory][]brokenRow)
	for _, p := range res.Pages {
		for _, l := range p.Broken() {
			cat := l.Outcome.ErrorCategory
			if cat == "" {
				cat = result.CategoryUnknown
			}
			grouped[cat] = append(grouped[cat], brokenRow{page: p.URL, link: l})
		}
	}

	for _, cat := range categoryOrder {
		rows := grouped[cat]
		if len(rows) == 0 {
			continue
		}

		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", cat.Label(), len(rows))))
		builder.WriteString("\n")

		cells := make([][]string, 0, len(rows))
		for _, r := range rows {
			cells = append(cells, []string{
				r.link.Candidate.NormalizedURL,
				statusText(r.link.Outcome),
				location(r.link.Candidate),
				r.page,
			})
		}

		catTable := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Status", "Location", "Found On").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 1 {
					return statusErrorStyle
				}
				return urlStyle
			}).
			Rows(cells...)

		builder.WriteString(catTable.Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Found %d broken links out of %d URLs checked on %d pages (%s)",
		res.Stats.BrokenCount,
		res.Stats.TotalChecked,
		res.Stats.PagesAudited,
		res.Stats.Duration.Round(time.Millisecond),
	)))
	builder.WriteString("\n")
	writeWarnings(&builder, res)

	return builder.String()
}

// writeWarnings lists passing links that carry a leniency warning or a
// trailing-slash note.
func writeWarnings(builder *strings.Builder, res *result.Result) {
	var lines []string
	for _, p := range res.Pages {
		for _, l := range p.Annotated() {
			note := l.Outcome.Warning
			if note == "" {
				note = l.Outcome.RetryNote
			}
			lines = append(lines, fmt.Sprintf("  %s: %s (on %s)", l.Candidate.NormalizedURL, note, p.URL))
		}
	}
	if len(lines) == 0 {
		return
	}
	builder.WriteString("\n")
	builder.WriteString(warnStyle.Render(fmt.Sprintf("Warnings (%d)", len(lines))))
	builder.WriteString("\n")
	for _, line := range lines {
		builder.WriteString(dimStyle.Render(line))
		builder.WriteString("\n")
	}
}

func statusText(o result.ValidationOutcome) string {
	if o.Error != "" {
		return o.Error
	}
	if o.StatusText != "" {
		return o.StatusText
	}
	return fmt.Sprintf("%d", o.Status)
}

func location(c result.LinkCandidate) string {
	if c.FromModal() && c.ModalTriggerText != "" {
		return fmt.Sprintf("%s (via %q)", c.LocationLabel, c.ModalTriggerText)
	}
	return c.LocationLabel
}
