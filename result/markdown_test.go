package result

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMarkdown(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteMarkdown returned error: %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"# Link Audit Report",
		"## https://site.example/",
		"https://site.example/missing",
		"Modal: Contact",
		"Connection Refused",
		"twitter.com commonly blocks automated requests",
		"Page could not be audited",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q\n%s", want, got)
		}
	}
}

func TestWriteMarkdown_Clean(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{Pages: []PageReport{{URL: "https://ok.example/"}}}
	r.Tally()
	if err := WriteMarkdown(&buf, r); err != nil {
		t.Fatalf("WriteMarkdown returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "No broken links found.") {
		t.Errorf("expected success tip, got\n%s", buf.String())
	}
}
