// Package crawler runs the link audit over a set of target pages. With a
// page budget above one it also follows same-site links breadth-first,
// honouring robots.txt, and streams progress events.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lukemcguire/linkscout/audit"
	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/urlutil"
	"github.com/lukemcguire/linkscout/validate"
)

// ErrDisallowed is recorded for pages robots.txt forbids.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Opener provides a fresh document for each audited page. release is
// called once the page's audit finishes.
type Opener func(ctx context.Context) (doc page.Document, release func(), err error)

// Config configures a Crawler.
type Config struct {
	Targets      []string
	MaxPages     int // pages audited in total; targets are always audited
	IgnoreRobots bool
	RobotsAgent  string
	RobotsClient *http.Client
	// MemoryLimitMB enables the memory watcher; 0 disables it.
	MemoryLimitMB int64
	// Memory overrides the heap sampler, for tests.
	Memory     func() uint64
	Validation validate.Options
	Audit      audit.Options
	Logger     *slog.Logger
}

// Crawler audits pages one at a time, sharing a validation pool and an
// outcome cache across the run.
type Crawler struct {
	cfg     Config
	open    Opener
	pool    *validate.Pool
	cache   *outcomeCache
	auditor *audit.Auditor
	robots  *RobotsChecker
	memory  *MemoryWatcher
	logger  *slog.Logger

	poolEvents chan validate.Event
	events     chan<- Event

	mu      sync.Mutex
	current string
	checked atomic.Int64
	broken  atomic.Int64
	pages   atomic.Int64
}

type queued struct {
	url  string
	host string // seed host the page was discovered under
}

// New creates a Crawler. events is optional; sends block, so a non-nil
// channel must be drained for the duration of Run.
func New(cfg Config, open Opener, events chan<- Event) (*Crawler, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("no targets")
	}
	if open == nil {
		return nil, errors.New("no document opener")
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Crawler{
		cfg:        cfg,
		open:       open,
		robots:     NewRobotsChecker(cfg.RobotsClient, cfg.RobotsAgent),
		logger:     logger,
		poolEvents: make(chan validate.Event, 64),
		events:     events,
	}

	vopts := cfg.Validation
	vopts.Events = c.poolEvents
	vopts.Logger = logger
	c.pool = validate.NewPool(vopts)
	c.cache = newOutcomeCache(c.pool, c.cachedOutcome)

	aopts := cfg.Audit
	aopts.Logger = logger
	c.auditor = audit.New(c.cache, aopts)

	if cfg.MemoryLimitMB > 0 {
		c.memory = NewMemoryWatcher(cfg.MemoryLimitMB, cfg.Memory)
		base := c.pool.Concurrency()
		c.memory.SetThrottleCallback(func(level ThrottleLevel) {
			n := base
			if level == ThrottleCritical {
				n = max(1, base/2)
			}
			c.pool.SetConcurrency(n)
			logger.Warn("memory pressure changed",
				slog.String("level", level.String()),
				slog.Int("concurrency", n))
		})
	}
	return c, nil
}

// Run audits every target, then discovered same-site pages up to the page
// budget. A cancelled context returns the partial result with the
// cancellation error. Run may be called once.
func (c *Crawler) Run(ctx context.Context) (*result.Result, error) {
	start := time.Now()
	res := &result.Result{}

	budget := max(c.cfg.MaxPages, len(c.cfg.Targets))
	seen, err := NewSeenSet(uint(budget)*8, 0.001, "")
	if err != nil {
		return nil, fmt.Errorf("create seen set: %w", err)
	}
	defer func() {
		if closeErr := seen.Close(); closeErr != nil {
			c.logger.Warn("close seen set", slog.Any("error", closeErr))
		}
	}()

	if c.memory != nil {
		c.memory.ApplySoftLimit()
	}

	var forwarding sync.WaitGroup
	forwarding.Go(c.forward)
	defer func() {
		close(c.poolEvents)
		forwarding.Wait()
	}()

	var queue []queued
	for _, target := range c.cfg.Targets {
		normalized, normErr := normalizeTarget(target)
		if normErr != nil {
			res.Pages = append(res.Pages, result.PageReport{
				URL:       target,
				Error:     fmt.Sprintf("invalid target: %v", normErr),
				ScannedAt: time.Now(),
			})
			continue
		}
		if seen.Add(normalized) {
			queue = append(queue, queued{url: normalized, host: hostOf(normalized)})
		}
	}

	for len(queue) > 0 && len(res.Pages) < budget {
		if ctx.Err() != nil {
			break
		}
		next := queue[0]
		queue = queue[1:]

		report := c.auditPage(ctx, next.url)
		res.Pages = append(res.Pages, report)
		c.emit(Event{Kind: PageDone, Page: next.url, Report: &report, Queued: len(queue)})

		if c.cfg.MaxPages <= 1 || ctx.Err() != nil {
			continue
		}
		for _, link := range report.Links {
			if !followable(link, next.host) {
				continue
			}
			if seen.Add(link.Candidate.NormalizedURL) {
				queue = append(queue, queued{url: link.Candidate.NormalizedURL, host: next.host})
			}
		}
	}
	if seenErr := seen.Err(); seenErr != nil {
		c.logger.Warn("seen set sync failed", slog.Any("error", seenErr))
	}

	res.Stats.Duration = time.Since(start)
	res.Tally()
	hits, probed := c.cache.Stats()
	c.logger.Debug("run finished",
		slog.Int("pages", len(res.Pages)),
		slog.Int("probed", probed),
		slog.Int("cache_hits", hits))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("run interrupted: %w", ctxErr)
	}
	return res, nil
}

// auditPage checks robots.txt, opens a document, and audits one page.
func (c *Crawler) auditPage(ctx context.Context, pageURL string) result.PageReport {
	logger := c.logger.With(slog.String("url", pageURL))

	if !c.cfg.IgnoreRobots {
		allowed, robotsErr := c.robots.Allowed(ctx, pageURL)
		if robotsErr != nil {
			logger.Warn("robots.txt unavailable, proceeding", slog.Any("error", robotsErr))
			c.emit(Event{Kind: Warning, Page: pageURL, Message: fmt.Sprintf("robots.txt check: %v", robotsErr)})
		}
		if !allowed {
			return result.PageReport{URL: pageURL, Error: ErrDisallowed.Error(), ScannedAt: time.Now()}
		}
	}

	if c.memory != nil {
		if used, level := c.memory.Check(); level != ThrottleNormal {
			logger.Warn("memory pressure", slog.Float64("used_percent", used), slog.String("level", level.String()))
		}
	}

	c.mu.Lock()
	c.current = pageURL
	c.mu.Unlock()
	c.emit(Event{Kind: PageStarted, Page: pageURL})

	doc, release, err := c.open(ctx)
	if err != nil {
		logger.Error("open document", slog.Any("error", err))
		return result.PageReport{URL: pageURL, Error: fmt.Sprintf("open page: %v", err), ScannedAt: time.Now()}
	}
	defer release()

	return c.auditor.Audit(ctx, doc, pageURL)
}

// forward relays pool events as run events with run-wide totals.
func (c *Crawler) forward() {
	for evt := range c.poolEvents {
		if evt.Kind != validate.LinkChecked {
			continue
		}
		c.linkChecked(evt.Outcome, false)
	}
}

func (c *Crawler) cachedOutcome(o result.ValidationOutcome) {
	c.linkChecked(o, true)
}

func (c *Crawler) linkChecked(o result.ValidationOutcome, cached bool) {
	checked := c.checked.Add(1)
	broken := c.broken.Load()
	if o.IsBroken {
		broken = c.broken.Add(1)
	}
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	c.emit(Event{
		Kind:    LinkChecked,
		Page:    current,
		URL:     o.URL,
		Outcome: o,
		Cached:  cached,
		Checked: int(checked),
		Broken:  int(broken),
	})
}

func (c *Crawler) emit(evt Event) {
	if c.events == nil {
		return
	}
	if evt.Kind == PageDone {
		evt.Pages = int(c.pages.Add(1))
	} else {
		evt.Pages = int(c.pages.Load())
	}
	if evt.Kind != LinkChecked {
		evt.Checked = int(c.checked.Load())
		evt.Broken = int(c.broken.Load())
	}
	c.events <- evt
}

// followable reports whether a validated link leads to another auditable
// page on the seed's host.
func followable(link result.LinkReport, seedHost string) bool {
	target := link.Candidate.NormalizedURL
	if link.Outcome.IsBroken || !urlutil.IsHTTPScheme(target) {
		return false
	}
	if !urlutil.IsSameDomain(target, seedHost) {
		return false
	}
	if urlutil.HasFileExtension(target) {
		ext := strings.ToLower(path.Ext(urlutil.LastPathSegment(target)))
		return ext == ".html" || ext == ".htm"
	}
	return true
}

// normalizeTarget normalizes a target URL and rejects non-HTTP schemes.
func normalizeTarget(raw string) (string, error) {
	normalized, err := urlutil.Normalize(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if !urlutil.IsHTTPScheme(normalized) {
		return "", fmt.Errorf("unsupported scheme in %q", raw)
	}
	return normalized, nil
}

// hostOf extracts the hostname (without port), as urlutil.IsSameDomain
// expects.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Hostname()
}
