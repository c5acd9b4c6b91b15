// Package extract discovers the user-reachable links of a rendered page.
//
// Extraction waits for the document to settle, scrolls it to trigger lazy
// content, collects visible anchors from the main document, then opens each
// overlay trigger in turn and collects the links inside the overlay. The
// result is an insertion-ordered, deduplicated candidate list.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/selector"
	"github.com/lukemcguire/linkscout/stability"
	"github.com/lukemcguire/linkscout/urlutil"
)

// LinkSelector matches anchor-like elements.
const LinkSelector = "a[href], area[href]"

// Options configures an Extractor.
type Options struct {
	Stability stability.Options

	// ScrollStep is the distance of each scroll increment in pixels.
	ScrollStep int
	// ScrollPause is the wait after each increment.
	ScrollPause time.Duration
	// MaxScrollPasses bounds how often the page is re-scrolled while it grows.
	MaxScrollPasses int

	Overlays OverlayPatterns
	// OpenTimeout bounds the wait for an overlay to appear after a click.
	OpenTimeout time.Duration
	// CloseTimeout bounds the wait for an overlay to disappear per close attempt.
	CloseTimeout time.Duration
	// OverlayPoll is the polling period for overlay open and close checks.
	OverlayPoll time.Duration
	// SkipOverlays disables modal traversal.
	SkipOverlays bool

	Synthesizer *selector.Synthesizer
	Logger      *slog.Logger
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		Stability:       stability.DefaultOptions(),
		ScrollStep:      100,
		ScrollPause:     50 * time.Millisecond,
		MaxScrollPasses: 100,
		Overlays:        DefaultOverlayPatterns(),
		OpenTimeout:     2 * time.Second,
		CloseTimeout:    time.Second,
		OverlayPoll:     100 * time.Millisecond,
	}
}

// Extraction is the outcome of one extraction pass.
type Extraction struct {
	Candidates   []result.LinkCandidate
	Degradations []string
	Overlays     OverlayStats
}

// OverlayStats counts modal traversal results.
type OverlayStats struct {
	Discovered int
	Skipped    int
	Scanned    int
	Failed     int
	Unclosed   int
}

// Extractor runs extraction passes. It holds no per-page state and can be
// reused across documents, but never concurrently on the same document.
type Extractor struct {
	opts   Options
	synth  *selector.Synthesizer
	logger *slog.Logger
}

// New creates an Extractor. Zero-valued options fall back to DefaultOptions.
func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.ScrollStep <= 0 {
		opts.ScrollStep = def.ScrollStep
	}
	if opts.ScrollPause < 0 {
		opts.ScrollPause = 0
	}
	if opts.MaxScrollPasses <= 0 {
		opts.MaxScrollPasses = def.MaxScrollPasses
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = def.OpenTimeout
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = def.CloseTimeout
	}
	if opts.OverlayPoll <= 0 {
		opts.OverlayPoll = def.OverlayPoll
	}
	opts.Overlays = opts.Overlays.withDefaults()

	synth := opts.Synthesizer
	if synth == nil {
		synth = selector.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Stability.Logger = logger
	return &Extractor{opts: opts, synth: synth, logger: logger}
}

// Extract discovers the candidates of the loaded document. The returned
// error is non-nil only when the document never parsed (wrapping
// stability.ErrContentNotParsed) or baseURL is unusable; every other
// shortfall is recorded in Extraction.Degradations.
func (e *Extractor) Extract(ctx context.Context, doc page.Document, baseURL string) (*Extraction, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	logger := e.logger.With(slog.String("url", baseURL))
	out := &Extraction{}

	detector := stability.New(doc, e.opts.Stability)
	report, err := detector.WaitInitial(ctx)
	if err != nil {
		return nil, err
	}
	out.Degradations = append(out.Degradations, report.Degradations...)

	if err := e.scroll(ctx, doc); err != nil {
		out.degrade(logger, "scrolling failed", err)
	}

	if outcome, _ := detector.WaitLazy(ctx); outcome != stability.Stable {
		out.Degradations = append(out.Degradations, "lazy content did not settle")
	}

	set := NewCandidateSet()
	links, err := e.scan(ctx, doc, nil, base, scope{})
	if err != nil {
		out.degrade(logger, "link query failed", err)
	}
	for _, c := range links {
		set.Add(c)
	}

	if !e.opts.SkipOverlays {
		out.Overlays = e.traverse(ctx, doc, base, set, logger)
		if out.Overlays.Failed > 0 {
			out.Degradations = append(out.Degradations,
				fmt.Sprintf("%d of %d overlays could not be scanned", out.Overlays.Failed, out.Overlays.Discovered))
		}
		if out.Overlays.Unclosed > 0 {
			out.Degradations = append(out.Degradations,
				fmt.Sprintf("%d overlays did not close", out.Overlays.Unclosed))
		}
	}

	out.Candidates = set.Items()
	logger.Debug("extraction complete",
		slog.Int("candidates", len(out.Candidates)),
		slog.Int("overlays", out.Overlays.Scanned))
	return out, nil
}

// scope tags candidates found inside an overlay.
type scope struct {
	label       string
	triggerSel  string
	triggerText string
}

// scan collects candidates from the visible anchors under root, or the
// whole document when root is nil.
func (e *Extractor) scan(ctx context.Context, doc page.Document, root *page.Element, base *url.URL, sc scope) ([]result.LinkCandidate, error) {
	elements, err := doc.QueryAll(ctx, root, LinkSelector)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}

	var out []result.LinkCandidate
	for _, el := range elements {
		if !IsVisible(el) {
			continue
		}
		href := el.AttrValue("href")
		if !urlutil.IsNavigational(href) {
			continue
		}
		normalized, err := urlutil.ResolveAndNormalize(base, href)
		if err != nil || !urlutil.IsHTTPScheme(normalized) {
			continue
		}

		c := result.LinkCandidate{
			NormalizedURL: normalized,
			DisplayText:   DisplayText(el),
			Selector:      e.synth.Synthesize(el),
			LocationLabel: Classify(el),
		}
		if sc.label != "" {
			c.LocationLabel = sc.label
			c.ModalTriggerSelector = sc.triggerSel
			c.ModalTriggerText = sc.triggerText
		}
		out = append(out, c)
	}
	return out, nil
}

// scroll walks the page to the bottom in small steps, repeating while the
// page keeps growing, then returns to the top.
func (e *Extractor) scroll(ctx context.Context, doc page.Document) error {
	height, err := doc.ScrollHeight(ctx)
	if err != nil {
		return fmt.Errorf("measure scroll height: %w", err)
	}

	pos := 0
	for pass := 0; pass < e.opts.MaxScrollPasses; pass++ {
		for ; pos < height; pos += e.opts.ScrollStep {
			if err := doc.ScrollTo(ctx, pos); err != nil {
				return fmt.Errorf("scroll to %d: %w", pos, err)
			}
			if err := sleep(ctx, e.opts.ScrollPause); err != nil {
				return err
			}
		}
		grown, err := doc.ScrollHeight(ctx)
		if err != nil {
			return fmt.Errorf("measure scroll height: %w", err)
		}
		if grown <= height {
			break
		}
		height = grown
	}

	if err := doc.ScrollTo(ctx, 0); err != nil {
		return fmt.Errorf("scroll to top: %w", err)
	}
	return nil
}

// DisplayText returns the link's visible text, falling back to its
// accessible label and then its title.
func DisplayText(el page.Element) string {
	for _, candidate := range []string{el.Text, el.AttrValue("aria-label"), el.AttrValue("title")} {
		if text := collapse(candidate); text != "" {
			return text
		}
	}
	return ""
}

func collapse(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (x *Extraction) degrade(logger *slog.Logger, what string, err error) {
	logger.Warn(what+", proceeding", slog.Any("error", err))
	x.Degradations = append(x.Degradations, fmt.Sprintf("%s: %v", what, err))
}
