package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes the page reports as a formatted JSON array to the writer.
// Uses flat array format (not wrapped with metadata) for simpler CI integration.
func WriteJSON(w io.Writer, pages []PageReport) error {
	if pages == nil {
		pages = []PageReport{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"page_url", "url", "status_code", "is_broken", "error_type",
	"location", "display_text", "selector", "modal_trigger", "retry_note", "warning",
}

// WriteCSV writes one row per validated link to the writer.
// Always includes a header row, even if there are no links.
func WriteCSV(w io.Writer, pages []PageReport) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, p := range pages {
		for _, link := range p.Links {
			record := []string{
				p.URL,
				link.Candidate.NormalizedURL,
				statusCodeStr(link.Outcome.Status),
				strconv.FormatBool(link.Outcome.IsBroken),
				string(link.Outcome.ErrorCategory),
				link.Candidate.LocationLabel,
				link.Candidate.DisplayText,
				link.Candidate.Selector,
				link.Candidate.ModalTriggerText,
				link.Outcome.RetryNote,
				link.Outcome.Warning,
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv record for %s: %w", link.Candidate.NormalizedURL, err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
