package result

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
)

// WriteMarkdown writes a human-readable report: a summary table, then per
// page the broken links and the links that only passed with an annotation.
func WriteMarkdown(w io.Writer, res *Result) error {
	md := markdown.NewMarkdown(w)

	md.H1("Link Audit Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Pages audited", strconv.Itoa(res.Stats.PagesAudited)},
			{"Pages failed", strconv.Itoa(res.Stats.PagesFailed)},
			{"Links checked", strconv.Itoa(res.Stats.TotalChecked)},
			{"Broken links", strconv.Itoa(res.Stats.BrokenCount)},
			{"Warnings", strconv.Itoa(res.Stats.WarningCount)},
			{"Duration", res.Stats.Duration.Round(1e6).String()},
		},
	})
	md.PlainText("")

	switch {
	case res.Stats.BrokenCount > 0:
		md.Warningf("%d broken links found.", res.Stats.BrokenCount)
	case res.Stats.PagesFailed > 0:
		md.Note("No broken links found, but some pages could not be audited.")
	default:
		md.Tip("No broken links found.")
	}
	md.PlainText("")

	for _, p := range res.Pages {
		writePage(md, p)
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown output: %w", err)
	}
	return nil
}

func writePage(md *markdown.Markdown, p PageReport) {
	md.H2(p.URL)
	md.PlainText("")

	if p.Error != "" {
		md.Cautionf("Page could not be audited: %s", p.Error)
		md.PlainText("")
		return
	}
	if len(p.Degradations) > 0 {
		md.BulletList(p.Degradations...)
		md.PlainText("")
	}

	broken := p.Broken()
	if len(broken) == 0 {
		md.PlainTextf("%d links checked, none broken.", len(p.Links))
		md.PlainText("")
	} else {
		rows := make([][]string, 0, len(broken))
		for _, l := range broken {
			rows = append(rows, []string{
				escapeCell(l.Candidate.NormalizedURL),
				statusLabel(l.Outcome),
				escapeCell(l.Candidate.LocationLabel),
				escapeCell(l.Candidate.DisplayText),
				"`" + strings.ReplaceAll(l.Candidate.Selector, "`", "'") + "`",
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Status", "Location", "Text", "Selector"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	var notes [][]string
	for _, l := range p.Links {
		note := l.Outcome.Warning
		if l.Outcome.RetryNote != "" {
			note = l.Outcome.RetryNote
		}
		if note == "" || l.Outcome.IsBroken {
			continue
		}
		notes = append(notes, []string{escapeCell(l.Candidate.NormalizedURL), escapeCell(note)})
	}
	if len(notes) > 0 {
		md.Table(markdown.TableSet{Header: []string{"URL", "Note"}, Rows: notes})
		md.PlainText("")
	}
}

func statusLabel(o ValidationOutcome) string {
	if o.Status == 0 {
		return o.ErrorCategory.Label()
	}
	return strconv.Itoa(o.Status)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
