package result

import (
	"testing"
	"time"
)

func TestTally(t *testing.T) {
	r := sampleResult()

	want := CrawlStats{
		PagesAudited: 2,
		PagesFailed:  1,
		TotalChecked: 3,
		BrokenCount:  2,
		WarningCount: 2,
		Duration:     3 * time.Second,
	}
	if r.Stats != want {
		t.Errorf("Tally() stats = %+v, want %+v", r.Stats, want)
	}
	if !r.HasBroken() {
		t.Error("HasBroken() = false, want true")
	}
}

func TestPageReportBroken(t *testing.T) {
	p := samplePages()[0]
	broken := p.Broken()
	if len(broken) != 2 {
		t.Fatalf("Broken() = %d links, want 2", len(broken))
	}
	if broken[0].Candidate.NormalizedURL != "https://site.example/missing" {
		t.Errorf("Broken()[0] = %s, want candidate order", broken[0].Candidate.NormalizedURL)
	}
	if !broken[1].Candidate.FromModal() {
		t.Error("second broken link should come from a modal")
	}
}

func TestPageReportAnnotated(t *testing.T) {
	p := samplePages()[0]
	annotated := p.Annotated()
	if len(annotated) != 1 {
		t.Fatalf("Annotated() = %d links, want 1", len(annotated))
	}
	if annotated[0].Candidate.NormalizedURL != "https://twitter.com/x" {
		t.Errorf("Annotated()[0] = %s, want the lenient link", annotated[0].Candidate.NormalizedURL)
	}
}

func TestHasBrokenEmpty(t *testing.T) {
	r := &Result{}
	r.Tally()
	if r.HasBroken() {
		t.Error("HasBroken() on empty result = true")
	}
}
