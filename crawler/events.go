package crawler

import "github.com/lukemcguire/linkscout/result"

// EventKind distinguishes run progress events.
type EventKind int

const (
	// PageStarted is sent before a page is audited.
	PageStarted EventKind = iota
	// LinkChecked is sent for every validated link, cached or probed.
	LinkChecked
	// PageDone is sent with each finished page report.
	PageDone
	// Warning carries a degraded-continue condition worth surfacing.
	Warning
)

// Event reports run progress. Checked and Broken are running totals for
// the whole run; Pages counts finished page reports.
type Event struct {
	Kind    EventKind
	Page    string
	URL     string
	Outcome result.ValidationOutcome
	Report  *result.PageReport
	Message string
	Cached  bool
	Checked int
	Broken  int
	Pages   int
	Queued  int
}
