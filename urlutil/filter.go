package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// nonNavigationalSchemes are href schemes that never lead to another document.
var nonNavigationalSchemes = []string{"javascript:", "mailto:", "tel:", "sms:", "data:"}

// IsSameDomain checks if targetURL belongs to the same domain as baseHost.
// Subdomains are considered same-domain (e.g., blog.example.com matches example.com).
func IsSameDomain(targetURL string, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	return HostMatches(parsed.Hostname(), baseHost)
}

// HostMatches reports whether host equals domain or is one of its subdomains.
func HostMatches(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// HostInList reports whether the URL's host matches any domain in the list.
func HostInList(rawURL string, domains []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	for _, domain := range domains {
		if HostMatches(host, domain) {
			return true
		}
	}
	return false
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// IsNavigational reports whether a raw href can take a user to another
// document. Script, mail, and phone links are not navigational, and neither
// are pure in-page anchors ("#top") or empty hrefs.
func IsNavigational(href string) bool {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	lower := strings.ToLower(href)
	for _, scheme := range nonNavigationalSchemes {
		if strings.HasPrefix(lower, scheme) {
			return false
		}
	}
	return true
}

// HasFileExtension reports whether the last path segment of the URL looks like
// a file name ("report.pdf", "index.html").
func HasFileExtension(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := path.Ext(path.Base(parsed.Path))
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

// LastPathSegment returns the final non-empty segment of the URL path.
func LastPathSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return ""
	}
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
