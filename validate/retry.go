package validate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy configures the transient-failure retry tier.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (1 = 2 total attempts)
	BaseDelay  time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Maximum backoff cap
}

// DefaultRetryPolicy returns one retry after 500ms, capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// probeWithRetry probes rawURL, retrying transient failures with
// exponential backoff. It returns the last probe and the attempt count.
func probeWithRetry(ctx context.Context, prober Prober, rawURL string, policy RetryPolicy) (Probe, int) {
	backoff := policy.BaseDelay
	var last Probe
	attempts := 0

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return last, attempts
			case <-t.C:
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		attempts++
		last = prober.Probe(ctx, rawURL)
		if !shouldRetry(last) {
			return last, attempts
		}
	}
	return last, attempts
}

// shouldRetry reports whether a probe failed transiently: network errors,
// 429, and 5xx. Other 4xx responses are final, and so are redirect loops.
func shouldRetry(p Probe) bool {
	if p.Err != nil {
		return !p.RedirectLoop && isRetryableError(p.Err)
	}
	return p.Status == http.StatusTooManyRequests || p.Status >= 500
}

// isRetryableError reports whether err looks like a transient network failure.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection refused", "connection reset", "no such host", "eof", "temporary failure"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
