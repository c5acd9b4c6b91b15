package result

import (
	"fmt"
	"io"
)

// PrintResults writes broken link details, annotated passing links, and a
// summary to w.
func PrintResults(w io.Writer, res *Result) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	for _, p := range res.Pages {
		if p.Error != "" {
			writef("Page %s could not be audited: %s\n\n", p.URL, p.Error)
		}
	}

	if !res.HasBroken() {
		writef("No broken links found!\n")
	} else {
		writef("Broken Links:\n")
		for _, p := range res.Pages {
			for _, link := range p.Broken() {
				writef("  URL: %s\n", link.Candidate.NormalizedURL)
				if link.Outcome.Error != "" {
					writef("  Error: %s\n", link.Outcome.Error)
				} else {
					writef("  Status: %d\n", link.Outcome.Status)
				}
				writef("  Found on: %s (%s)\n", p.URL, link.Candidate.LocationLabel)
				if link.Candidate.FromModal() {
					writef("  Opened by: %q\n", link.Candidate.ModalTriggerText)
				}
				if link.Outcome.RetryNote != "" {
					writef("  Note: %s\n", link.Outcome.RetryNote)
				}
				writef("\n")
			}
		}
	}

	printed := false
	for _, p := range res.Pages {
		for _, link := range p.Annotated() {
			if !printed {
				writef("Warnings:\n")
				printed = true
			}
			writef("  URL: %s\n", link.Candidate.NormalizedURL)
			if link.Outcome.Warning != "" {
				writef("  Warning: %s\n", link.Outcome.Warning)
			}
			if link.Outcome.RetryNote != "" {
				writef("  Note: %s\n", link.Outcome.RetryNote)
			}
			writef("  Found on: %s (%s)\n\n", p.URL, link.Candidate.LocationLabel)
		}
	}

	writef("Audited %d pages, checked %d URLs, found %d broken links\n",
		res.Stats.PagesAudited, res.Stats.TotalChecked, res.Stats.BrokenCount)
}
