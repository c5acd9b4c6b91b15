package result

import "time"

func samplePages() []PageReport {
	return []PageReport{
		{
			URL: "https://site.example/",
			Links: []LinkReport{
				{
					Candidate: LinkCandidate{
						NormalizedURL: "https://site.example/missing",
						DisplayText:   "Missing",
						Selector:      `#nav a:contains("Missing")`,
						LocationLabel: "Navigation",
					},
					Outcome: ValidationOutcome{
						URL: "https://site.example/missing", Status: 404, StatusText: "404 Not Found",
						IsBroken: true, ErrorCategory: Category4xx,
						RetryNote: "retried with trailing slash: still 404", Attempts: 2,
					},
				},
				{
					Candidate: LinkCandidate{
						NormalizedURL:        "https://site.example/support",
						DisplayText:          "Support",
						Selector:             `a[href*="support"]`,
						LocationLabel:        "Modal: Contact",
						ModalTriggerSelector: "#contact-btn",
						ModalTriggerText:     "Contact",
					},
					Outcome: ValidationOutcome{
						URL: "https://site.example/support", Status: 0,
						IsBroken: true, Error: "connection refused", ErrorCategory: CategoryConnectionRefused, Attempts: 2,
					},
				},
				{
					Candidate: LinkCandidate{
						NormalizedURL: "https://twitter.com/x",
						DisplayText:   "Twitter",
						Selector:      "a.social",
						LocationLabel: "Footer",
					},
					Outcome: ValidationOutcome{
						URL: "https://twitter.com/x", Status: 403, StatusText: "403 Forbidden",
						Warning: "twitter.com commonly blocks automated requests", Attempts: 1,
					},
				},
			},
			Duration:  1500 * time.Millisecond,
			ScannedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		{
			URL:   "https://site.example/down",
			Error: "document content never parsed: context deadline exceeded",
		},
	}
}

func sampleResult() *Result {
	r := &Result{Pages: samplePages(), Stats: CrawlStats{Duration: 3 * time.Second}}
	r.Tally()
	return r
}
