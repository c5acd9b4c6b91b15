// Package stability decides when a rendered document has stopped mutating.
//
// The initial wait requires the content-parsed signal; failing to reach it is
// the one fatal condition for a page. Everything after that is best effort:
// load and network-idle signals, element-count quiescence and the lazy-content
// wait all degrade to "proceed with what is there" when their ceilings hit.
package stability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lukemcguire/linkscout/page"
)

// ErrContentNotParsed means the document never reached the content-parsed
// signal. Callers must abort the page audit.
var ErrContentNotParsed = errors.New("document content never parsed")

const (
	// ElementSelector matches every element in the document.
	ElementSelector = "*"
	// LazySelector matches the media and link elements lazy loading adds.
	LazySelector = "img, video, picture, iframe, a"
)

// Options configures a Detector.
type Options struct {
	// Overall bounds the whole initial wait.
	Overall time.Duration
	// SubWait bounds each individual wait.
	SubWait time.Duration
	// PollInterval is the element-count polling period.
	PollInterval time.Duration
	// StablePolls is how many identical element counts mean stable.
	StablePolls int
	// MaxPolls bounds element-count polling.
	MaxPolls int
	// LazyInterval is the media+link polling period.
	LazyInterval time.Duration
	// LazySamples is how many identical media+link counts mean settled.
	LazySamples int
	// LazyCeiling bounds the lazy-content wait.
	LazyCeiling time.Duration
	Logger      *slog.Logger
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		Overall:      60 * time.Second,
		SubWait:      30 * time.Second,
		PollInterval: 100 * time.Millisecond,
		StablePolls:  3,
		MaxPolls:     100,
		LazyInterval: 500 * time.Millisecond,
		LazySamples:  10,
		LazyCeiling:  30 * time.Second,
	}
}

// Report describes how the initial wait went.
type Report struct {
	Loaded       bool
	NetworkIdle  bool
	DOM          Outcome
	Last         Sample
	Degradations []string
}

// Detector polls a page.Document for stability.
type Detector struct {
	doc    page.Document
	opts   Options
	logger *slog.Logger
}

// New creates a Detector. Zero-valued options fall back to DefaultOptions.
func New(doc page.Document, opts Options) *Detector {
	def := DefaultOptions()
	if opts.Overall <= 0 {
		opts.Overall = def.Overall
	}
	if opts.SubWait <= 0 {
		opts.SubWait = def.SubWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.StablePolls <= 0 {
		opts.StablePolls = def.StablePolls
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = def.MaxPolls
	}
	if opts.LazyInterval <= 0 {
		opts.LazyInterval = def.LazyInterval
	}
	if opts.LazySamples <= 0 {
		opts.LazySamples = def.LazySamples
	}
	if opts.LazyCeiling <= 0 {
		opts.LazyCeiling = def.LazyCeiling
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{doc: doc, opts: opts, logger: logger}
}

// WaitInitial waits for the initial render burst to settle. It returns an
// error wrapping ErrContentNotParsed only when the content-parsed signal
// is not reached; every other shortfall is recorded in the report.
func (d *Detector) WaitInitial(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Overall)
	defer cancel()

	var report Report

	if err := d.waitState(ctx, page.ContentParsed); err != nil {
		return report, fmt.Errorf("%w: %w", ErrContentNotParsed, err)
	}

	if err := d.waitState(ctx, page.FullyLoaded); err != nil {
		report.degrade(d.logger, "load event not reached", err)
	} else {
		report.Loaded = true
	}

	if err := d.waitState(ctx, page.NetworkIdle); err != nil {
		report.degrade(d.logger, "network never went idle", err)
	} else {
		report.NetworkIdle = true
	}

	poll := NewPoll(d.opts.StablePolls, d.opts.MaxPolls)
	report.DOM = d.run(ctx, ElementSelector, d.opts.PollInterval, d.opts.SubWait, poll)
	report.Last = Sample{ElementCount: poll.Last(), Timestamp: time.Now()}
	if report.DOM != Stable {
		report.degrade(d.logger, "element count never settled",
			fmt.Errorf("%d polls, last count %d", poll.Polls(), poll.Last()))
	}
	return report, nil
}

// WaitLazy waits for scroll-triggered media and links to stop arriving.
// It never fails; a TimedOut result means scanning proceeds as-is.
func (d *Detector) WaitLazy(ctx context.Context) (Outcome, Sample) {
	poll := NewPoll(d.opts.LazySamples, 0)
	outcome := d.run(ctx, LazySelector, d.opts.LazyInterval, d.opts.LazyCeiling, poll)
	sample := Sample{MediaPlusLinkCount: poll.Last(), Timestamp: time.Now()}
	if outcome != Stable {
		d.logger.Warn("lazy content still changing, proceeding",
			slog.Int("polls", poll.Polls()),
			slog.Int("count", poll.Last()))
	}
	return outcome, sample
}

func (d *Detector) waitState(ctx context.Context, state page.LoadState) error {
	waitCtx, cancel := context.WithTimeout(ctx, d.opts.SubWait)
	defer cancel()
	return d.doc.WaitFor(waitCtx, state)
}

func (d *Detector) run(ctx context.Context, selector string, interval, ceiling time.Duration, poll *Poll) Outcome {
	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		count, err := d.doc.Count(ctx, selector)
		var state Outcome
		if err != nil {
			d.logger.Debug("stability poll failed", slog.String("selector", selector), slog.Any("error", err))
			state = poll.Miss()
		} else {
			state = poll.Observe(count)
		}
		if state != Pending {
			return state
		}

		select {
		case <-ctx.Done():
			return poll.Expire()
		case <-ticker.C:
		}
	}
}

func (r *Report) degrade(logger *slog.Logger, what string, err error) {
	logger.Warn(what+", proceeding", slog.Any("error", err))
	r.Degradations = append(r.Degradations, fmt.Sprintf("%s: %v", what, err))
}
