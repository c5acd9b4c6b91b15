package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxRedirects matches net/http's default policy; going past it counts as a loop.
const maxRedirects = 10

// DefaultUserAgent is sent unless configured otherwise. Some sites refuse
// requests that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

var errRedirectLoop = errors.New("too many redirects")

// BrowserHeaders returns the request headers sent with every probe.
func BrowserHeaders() map[string]string {
	return map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
}

// Probe is the raw result of checking one URL.
type Probe struct {
	Status       int
	Method       string
	Err          error
	RedirectLoop bool
	RTT          time.Duration
}

// Prober checks whether a URL is reachable.
type Prober interface {
	Probe(ctx context.Context, rawURL string) Probe
}

// HTTPProber probes with a HEAD request, falling back to GET when HEAD
// fails at the transport level or is not supported by the server.
type HTTPProber struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	headers   map[string]string
	limiter   *HostLimiter
}

// NewHTTPProber creates an HTTPProber. A nil client gets a fresh one with
// a redirect policy that reports loops; a nil limiter means unlimited.
func NewHTTPProber(client *http.Client, timeout time.Duration, userAgent string, headers map[string]string, limiter *HostLimiter) *HTTPProber {
	if client == nil {
		client = &http.Client{}
	}
	if client.CheckRedirect == nil {
		c := *client
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errRedirectLoop
			}
			return nil
		}
		client = &c
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	merged := BrowserHeaders()
	for k, v := range headers {
		merged[k] = v
	}
	return &HTTPProber{
		client:    client,
		timeout:   timeout,
		userAgent: userAgent,
		headers:   merged,
		limiter:   limiter,
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) Probe {
	res := p.do(ctx, http.MethodHead, rawURL)
	switch {
	case res.Err != nil && ctx.Err() == nil:
		return p.do(ctx, http.MethodGet, rawURL)
	case res.Status == http.StatusMethodNotAllowed, res.Status == http.StatusNotImplemented:
		return p.do(ctx, http.MethodGet, rawURL)
	}
	return res
}

func (p *HTTPProber) do(ctx context.Context, method, rawURL string) (res Probe) {
	res.Method = method

	var limiter *AdaptiveLimiter
	if p.limiter != nil {
		limiter = p.limiter.For(rawURL)
		if err := limiter.Wait(ctx); err != nil {
			res.Err = fmt.Errorf("rate limiter wait: %w", err)
			return res
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, rawURL, nil)
	if err != nil {
		res.Err = fmt.Errorf("create request: %w", err)
		return res
	}
	req.Header.Set("User-Agent", p.userAgent)
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	res.RTT = time.Since(start)
	if err != nil {
		res.Err = err
		res.RedirectLoop = errors.Is(err, errRedirectLoop)
		return res
	}
	// Only the status matters; a little of the body is drained so the
	// connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)
	_ = resp.Body.Close()

	res.Status = resp.StatusCode
	if limiter != nil {
		if res.Status == http.StatusTooManyRequests {
			limiter.ObserveThrottle()
		} else {
			limiter.ObserveRTT(res.RTT)
		}
	}
	return res
}
