package result

import "time"

// LinkCandidate is a discovered, not yet validated link. NormalizedURL is
// its identity; the first occurrence seen on a page supplies the context.
type LinkCandidate struct {
	NormalizedURL        string `json:"normalized_url"`
	DisplayText          string `json:"display_text"`
	Selector             string `json:"selector"`
	LocationLabel        string `json:"location_label"`
	ModalTriggerSelector string `json:"modal_trigger_selector,omitempty"`
	ModalTriggerText     string `json:"modal_trigger_text,omitempty"`
}

// FromModal reports whether the link was found inside an overlay.
func (c LinkCandidate) FromModal() bool {
	return c.ModalTriggerSelector != ""
}

// ValidationOutcome is the reachability verdict for one candidate URL.
type ValidationOutcome struct {
	URL           string        `json:"url"`
	Status        int           `json:"status"`      // HTTP status code (0 if unreachable)
	StatusText    string        `json:"status_text"` // e.g. "404 Not Found"
	IsBroken      bool          `json:"is_broken"`
	Error         string        `json:"error,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	RetryNote     string        `json:"retry_note,omitempty"` // trailing-slash retry annotation
	Warning       string        `json:"warning,omitempty"`    // leniency annotation
	Attempts      int           `json:"attempts"`
}

// LinkReport pairs a candidate with its outcome.
type LinkReport struct {
	Candidate LinkCandidate     `json:"candidate"`
	Outcome   ValidationOutcome `json:"outcome"`
}

// PageReport is the audit result for a single page. Error is set when the
// page could not be scanned at all; Degradations lists the best-effort
// steps that fell short.
type PageReport struct {
	URL          string        `json:"url"`
	Links        []LinkReport  `json:"links"`
	Error        string        `json:"error,omitempty"`
	Degradations []string      `json:"degradations,omitempty"`
	Screenshot   string        `json:"screenshot,omitempty"`
	Duration     time.Duration `json:"duration"`
	ScannedAt    time.Time     `json:"scanned_at"`
}

// Broken returns the page's broken links in candidate order.
func (p PageReport) Broken() []LinkReport {
	var broken []LinkReport
	for _, l := range p.Links {
		if l.Outcome.IsBroken {
			broken = append(broken, l)
		}
	}
	return broken
}

// Annotated returns the links that passed but carry a leniency warning or
// a trailing-slash note.
func (p PageReport) Annotated() []LinkReport {
	var annotated []LinkReport
	for _, l := range p.Links {
		if !l.Outcome.IsBroken && (l.Outcome.Warning != "" || l.Outcome.RetryNote != "") {
			annotated = append(annotated, l)
		}
	}
	return annotated
}

// CrawlStats contains aggregate statistics for a run.
type CrawlStats struct {
	PagesAudited int           `json:"pages_audited"`
	PagesFailed  int           `json:"pages_failed"`
	TotalChecked int           `json:"total_checked"` // links validated across all pages
	BrokenCount  int           `json:"broken_count"`
	WarningCount int           `json:"warning_count"`
	Duration     time.Duration `json:"duration"`
}

// Result represents the complete output of a run.
type Result struct {
	Pages []PageReport `json:"pages"`
	Stats CrawlStats   `json:"stats"`
}

// Tally recomputes Stats from Pages, leaving Duration untouched.
func (r *Result) Tally() {
	stats := CrawlStats{Duration: r.Stats.Duration}
	for _, p := range r.Pages {
		stats.PagesAudited++
		if p.Error != "" {
			stats.PagesFailed++
		}
		for _, l := range p.Links {
			stats.TotalChecked++
			if l.Outcome.IsBroken {
				stats.BrokenCount++
			}
			if l.Outcome.Warning != "" || l.Outcome.RetryNote != "" {
				stats.WarningCount++
			}
		}
	}
	r.Stats = stats
}

// HasBroken reports whether any page has a broken link.
func (r *Result) HasBroken() bool {
	for _, p := range r.Pages {
		for _, l := range p.Links {
			if l.Outcome.IsBroken {
				return true
			}
		}
	}
	return false
}
