// Package validate checks the reachability of link candidates with a
// bounded worker pool.
//
// Candidates are validated in sequential batches of at most Concurrency
// URLs. Within a batch every URL is probed in parallel; the next batch
// starts only after all of the previous batch's probes have settled.
package validate

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/linkscout/result"
)

// Options configures a Pool.
type Options struct {
	Concurrency     int           // URLs probed in parallel per batch (default 10)
	Timeout         time.Duration // Per-request timeout (default 5s)
	Retry           RetryPolicy
	LenientDomains  []string
	LenientStatuses []int
	UserAgent       string
	Headers         map[string]string
	RateLimit       int // Initial per-host requests per second; 0 is unlimited
	Client          *http.Client
	// Prober replaces the HTTP prober; the HTTP fields above are then unused.
	Prober Prober
	// Events receives progress; sends block, so the reader must keep up.
	Events chan<- Event
	Logger *slog.Logger
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Concurrency: 10,
		Timeout:     5 * time.Second,
		Retry:       DefaultRetryPolicy(),
	}
}

// Pool validates candidates in bounded batches.
type Pool struct {
	checker     *Checker
	concurrency atomic.Int32
	events      chan<- Event
	logger      *slog.Logger
}

// NewPool creates a Pool.
func NewPool(opts Options) *Pool {
	def := DefaultOptions()
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = def.Retry
	}
	prober := opts.Prober
	if prober == nil {
		prober = NewHTTPProber(opts.Client, opts.Timeout, opts.UserAgent, opts.Headers,
			NewHostLimiter(opts.RateLimit, 0))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		checker: NewChecker(prober, opts.Retry, opts.LenientDomains, opts.LenientStatuses),
		events:  opts.Events,
		logger:  logger,
	}
	p.concurrency.Store(int32(opts.Concurrency))
	return p
}

// Concurrency returns the current batch size.
func (p *Pool) Concurrency() int {
	return int(p.concurrency.Load())
}

// SetConcurrency changes the batch size for batches not yet started.
func (p *Pool) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	p.concurrency.Store(int32(n))
}

// Validate checks every candidate and returns one outcome per candidate,
// in candidate order. Link failures are outcomes, not errors; a cancelled
// context yields outcomes carrying the cancellation error.
func (p *Pool) Validate(ctx context.Context, candidates []result.LinkCandidate) []result.ValidationOutcome {
	outcomes := make([]result.ValidationOutcome, len(candidates))
	var checked, broken atomic.Int64

	batch := 0
	for start := 0; start < len(candidates); batch++ {
		size := min(p.Concurrency(), len(candidates)-start)
		p.emit(Event{Kind: BatchStarted, Batch: batch, Size: size, Total: len(candidates)})
		p.logger.Debug("validation batch", slog.Int("batch", batch), slog.Int("size", size))

		var g errgroup.Group
		g.SetLimit(size)
		for i := start; i < start+size; i++ {
			g.Go(func() error {
				outcome := p.checker.Check(ctx, candidates[i].NormalizedURL)
				outcomes[i] = outcome

				n := checked.Add(1)
				if outcome.IsBroken {
					broken.Add(1)
				}
				p.logger.Debug("link checked",
					slog.String("url", outcome.URL),
					slog.Int("status", outcome.Status),
					slog.Bool("broken", outcome.IsBroken))
				p.emit(Event{
					Kind:    LinkChecked,
					Batch:   batch,
					URL:     outcome.URL,
					Outcome: outcome,
					Checked: int(n),
					Broken:  int(broken.Load()),
					Total:   len(candidates),
				})
				return nil
			})
		}
		_ = g.Wait()
		start += size
	}
	return outcomes
}

func (p *Pool) emit(evt Event) {
	if p.events != nil {
		p.events <- evt
	}
}
