package urlutil

import "testing"

func TestIsSameDomain(t *testing.T) {
	tests := []struct {
		name      string
		targetURL string
		baseHost  string
		expected  bool
	}{
		{
			name:      "same host",
			targetURL: "https://example.com/page",
			baseHost:  "example.com",
			expected:  true,
		},
		{
			name:      "subdomain match",
			targetURL: "https://blog.example.com/post",
			baseHost:  "example.com",
			expected:  true,
		},
		{
			name:      "deep subdomain",
			targetURL: "https://a.b.example.com/",
			baseHost:  "example.com",
			expected:  true,
		},
		{
			name:      "different domain",
			targetURL: "https://other.com/page",
			baseHost:  "example.com",
			expected:  false,
		},
		{
			name:      "different TLD",
			targetURL: "https://example.org/",
			baseHost:  "example.com",
			expected:  false,
		},
		{
			name:      "scheme agnostic",
			targetURL: "http://example.com/page",
			baseHost:  "example.com",
			expected:  true,
		},
		{
			name:      "partial suffix mismatch",
			targetURL: "https://notexample.com",
			baseHost:  "example.com",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsSameDomain(tt.targetURL, tt.baseHost)
			if got != tt.expected {
				t.Errorf("IsSameDomain(%q, %q) = %v, want %v", tt.targetURL, tt.baseHost, got, tt.expected)
			}
		})
	}
}

func TestIsHTTPScheme(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "https scheme",
			input:    "https://example.com",
			expected: true,
		},
		{
			name:     "http scheme",
			input:    "http://example.com",
			expected: true,
		},
		{
			name:     "mailto scheme",
			input:    "mailto:user@example.com",
			expected: false,
		},
		{
			name:     "tel scheme",
			input:    "tel:+1234567890",
			expected: false,
		},
		{
			name:     "javascript scheme",
			input:    "javascript:void(0)",
			expected: false,
		},
		{
			name:     "ftp scheme",
			input:    "ftp://files.example.com",
			expected: false,
		},
		{
			name:     "empty string",
			input:    "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsHTTPScheme(tt.input)
			if got != tt.expected {
				t.Errorf("IsHTTPScheme(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestIsNavigational(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"/about", true},
		{"https://example.com", true},
		{"page.html#top", true},
		{"#top", false},
		{"", false},
		{"   ", false},
		{"javascript:void(0)", false},
		{"JavaScript:openMenu()", false},
		{"mailto:team@example.com", false},
		{"tel:+15550100", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := IsNavigational(tt.href); got != tt.want {
				t.Errorf("IsNavigational(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

func TestHasFileExtension(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://site.example/missing", false},
		{"https://site.example/missing.html", true},
		{"https://site.example/files/report.PDF", true},
		{"https://site.example/", false},
		{"https://site.example/v1.2/docs", false},
		{"https://site.example/archive.tar.gz", true},
		{"https://site.example/name.with-dash", false},
		{"https://site.example/page?file=a.pdf", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := HasFileExtension(tt.url); got != tt.want {
				t.Errorf("HasFileExtension(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://site.example/docs/install", "install"},
		{"https://site.example/docs/install/", "install"},
		{"https://site.example/", ""},
		{"https://site.example", ""},
		{"https://site.example/pricing", "pricing"},
	}

	for _, tt := range tests {
		if got := LastPathSegment(tt.url); got != tt.want {
			t.Errorf("LastPathSegment(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestHostInList(t *testing.T) {
	domains := []string{"twitter.com", "linkedin.com"}

	tests := []struct {
		url  string
		want bool
	}{
		{"https://twitter.com/x", true},
		{"https://www.linkedin.com/company/acme", true},
		{"https://TWITTER.com/x", true},
		{"https://site.example/x", false},
		{"https://nottwitter.com/x", false},
		{"::bad", false},
	}

	for _, tt := range tests {
		if got := HostInList(tt.url, domains); got != tt.want {
			t.Errorf("HostInList(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
