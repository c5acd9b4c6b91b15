package result

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrintResults_NoBrokenLinks(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{
		Stats: CrawlStats{PagesAudited: 1, TotalChecked: 10, BrokenCount: 0, Duration: time.Second},
	}

	PrintResults(&buf, r)

	got := buf.String()
	want := "No broken links found!\nAudited 1 pages, checked 10 URLs, found 0 broken links\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintResults_WithBrokenLinks(t *testing.T) {
	var buf bytes.Buffer
	PrintResults(&buf, sampleResult())
	got := buf.String()

	for _, want := range []string{
		"Page https://site.example/down could not be audited",
		"Broken Links:",
		"URL: https://site.example/missing",
		"Status: 404",
		"Found on: https://site.example/ (Navigation)",
		"Note: retried with trailing slash: still 404",
		"URL: https://site.example/support",
		"Error: connection refused",
		`Opened by: "Contact"`,
		"Audited 2 pages, checked 3 URLs, found 2 broken links",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "Error: HTTP") {
		t.Error("status-only failure should print its status, not an error")
	}

	warnings := strings.Index(got, "Warnings:")
	if warnings < 0 {
		t.Fatalf("output missing Warnings section\n%s", got)
	}
	if strings.Contains(got[:warnings], "twitter.com") {
		t.Error("lenient link should not be listed as broken")
	}
	if !strings.Contains(got[warnings:], "Warning: twitter.com commonly blocks automated requests") {
		t.Errorf("lenient warning missing from Warnings section\n%s", got[warnings:])
	}
}

func TestPrintResults_WarningsWithoutBroken(t *testing.T) {
	res := &Result{Pages: []PageReport{{
		URL: "https://site.example/",
		Links: []LinkReport{
			{
				Candidate: LinkCandidate{NormalizedURL: "https://site.example/docs", LocationLabel: "Main Content"},
				Outcome: ValidationOutcome{
					URL: "https://site.example/docs", Status: 200, Attempts: 2,
					RetryNote: "https://site.example/docs returned 404; the working address needs a trailing slash: https://site.example/docs/",
				},
			},
			{
				Candidate: LinkCandidate{NormalizedURL: "https://site.example/ok", LocationLabel: "Footer"},
				Outcome:   ValidationOutcome{URL: "https://site.example/ok", Status: 200, Attempts: 1},
			},
		},
	}}}
	res.Tally()

	var buf bytes.Buffer
	PrintResults(&buf, res)
	got := buf.String()

	for _, want := range []string{
		"No broken links found!",
		"Warnings:",
		"URL: https://site.example/docs",
		"Note: https://site.example/docs returned 404",
		"Found on: https://site.example/ (Main Content)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "URL: https://site.example/ok") {
		t.Error("plain passing link should not be listed")
	}
}
