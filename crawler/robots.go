package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsAgent is the product token matched against robots.txt groups.
const RobotsAgent = "linkscout"

// maxRobotsBytes caps how much of a robots.txt is read.
const maxRobotsBytes = 512 * 1024

// robotsEntry is a cached robots.txt; nil rules allow everything.
type robotsEntry struct {
	rules     *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker decides whether a page may be audited. Rules are fetched
// once per origin and cached; any failure to obtain them allows the page.
type RobotsChecker struct {
	client *http.Client
	agent  string
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]robotsEntry
}

// NewRobotsChecker creates a RobotsChecker. An empty agent uses RobotsAgent.
func NewRobotsChecker(client *http.Client, agent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if agent == "" {
		agent = RobotsAgent
	}
	return &RobotsChecker{
		client: client,
		agent:  agent,
		ttl:    time.Hour,
		cache:  make(map[string]robotsEntry),
	}
}

// Allowed reports whether rawURL may be audited. A non-nil error explains
// why the rules could not be used; the answer is then true.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return true, nil
	}
	origin := u.Scheme + "://" + u.Host

	r.mu.Lock()
	entry, ok := r.cache[origin]
	r.mu.Unlock()

	if !ok || time.Since(entry.fetchedAt) >= r.ttl {
		rules, fetchErr := r.fetch(ctx, origin)
		entry = robotsEntry{rules: rules, fetchedAt: time.Now()}
		r.mu.Lock()
		r.cache[origin] = entry
		r.mu.Unlock()
		if fetchErr != nil {
			return true, fetchErr
		}
	}

	if entry.rules == nil {
		return true, nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.rules.TestAgent(path, r.agent), nil
}

// fetch downloads and parses origin's robots.txt. Missing files and server
// errors mean no rules.
func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for %s: %w", origin, err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt for %s: %w", origin, err)
	}
	rules, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	return rules, nil
}

// ClearCache forgets every cached robots.txt.
func (r *RobotsChecker) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}
