package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/urlutil"
)

// DefaultLenientDomains are platforms that commonly refuse unauthenticated
// automated requests while working normally for people.
func DefaultLenientDomains() []string {
	return []string{
		"twitter.com",
		"x.com",
		"facebook.com",
		"instagram.com",
		"linkedin.com",
		"tiktok.com",
		"pinterest.com",
		"reddit.com",
		"youtube.com",
		"medium.com",
	}
}

// DefaultLenientStatuses are the statuses excused on lenient domains.
func DefaultLenientStatuses() []int {
	return []int{http.StatusBadRequest, http.StatusForbidden}
}

// Checker turns probes into outcomes. It applies, in order, the transient
// retry tier, the trailing-slash retry, and domain leniency.
type Checker struct {
	prober          Prober
	retry           RetryPolicy
	lenientDomains  []string
	lenientStatuses []int
}

// NewChecker creates a Checker. Nil domain or status lists use the defaults;
// an empty non-nil list disables leniency.
func NewChecker(prober Prober, retry RetryPolicy, lenientDomains []string, lenientStatuses []int) *Checker {
	if lenientDomains == nil {
		lenientDomains = DefaultLenientDomains()
	}
	if lenientStatuses == nil {
		lenientStatuses = DefaultLenientStatuses()
	}
	return &Checker{
		prober:          prober,
		retry:           retry,
		lenientDomains:  lenientDomains,
		lenientStatuses: lenientStatuses,
	}
}

// Check validates one URL.
func (c *Checker) Check(ctx context.Context, rawURL string) result.ValidationOutcome {
	probe, attempts := probeWithRetry(ctx, c.prober, rawURL, c.retry)
	out := result.ValidationOutcome{URL: rawURL, Attempts: attempts}

	if probe.Status >= 400 && !urlutil.HasFileExtension(rawURL) {
		if slashed, ok := withTrailingSlash(rawURL); ok {
			retry := c.prober.Probe(ctx, slashed)
			out.Attempts++
			if retry.Err == nil && retry.Status > 0 && retry.Status < 400 {
				out.Status = retry.Status
				out.StatusText = statusText(retry.Status)
				out.RetryNote = fmt.Sprintf("%s returned %d; the working address needs a trailing slash: %s",
					rawURL, probe.Status, slashed)
				return out
			}
			out.RetryNote = fmt.Sprintf("retried as %s: %s", slashed, describe(retry))
		}
	}

	out.Status = probe.Status
	out.StatusText = statusText(probe.Status)
	failed := probe.Err != nil || probe.Status >= 400
	if !failed {
		return out
	}

	out.ErrorCategory = result.Failure{Status: probe.Status, Err: probe.Err, RedirectLoop: probe.RedirectLoop}.Category()
	if probe.Err != nil {
		out.Error = probe.Err.Error()
	}

	if c.isLenient(rawURL, probe) {
		out.Warning = fmt.Sprintf("%s: %s, but this site commonly blocks automated checks", hostOf(rawURL), describe(probe))
		return out
	}
	out.IsBroken = true
	return out
}

// isLenient reports whether an allowlisted domain's failure is excused.
// Redirect loops are never excused.
func (c *Checker) isLenient(rawURL string, p Probe) bool {
	if !urlutil.HostInList(rawURL, c.lenientDomains) {
		return false
	}
	if p.Err != nil {
		return !p.RedirectLoop
	}
	return slices.Contains(c.lenientStatuses, p.Status)
}

// withTrailingSlash appends "/" to the URL path, unless it already ends in one.
func withTrailingSlash(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || strings.HasSuffix(u.Path, "/") {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}
	u.Path += "/"
	if u.RawPath != "" {
		u.RawPath += "/"
	}
	return u.String(), true
}

func statusText(code int) string {
	if code == 0 {
		return ""
	}
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}

func describe(p Probe) string {
	if p.Err != nil {
		return p.Err.Error()
	}
	return statusText(p.Status)
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return rawURL
}
