package validate

import "github.com/lukemcguire/linkscout/result"

// EventKind distinguishes progress events.
type EventKind int

const (
	// BatchStarted is sent before a batch's probes start.
	BatchStarted EventKind = iota
	// LinkChecked is sent after each URL is validated.
	LinkChecked
)

// Event reports validation progress.
type Event struct {
	Kind    EventKind
	Batch   int
	Size    int // batch size, for BatchStarted
	URL     string
	Outcome result.ValidationOutcome
	Checked int
	Broken  int
	Total   int
}
