package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/lukemcguire/linkscout/page"
	"github.com/lukemcguire/linkscout/result"
	"github.com/lukemcguire/linkscout/selector"
)

// ModalState is a step in the open/scan/close cycle of one overlay.
type ModalState int

const (
	ModalClosed ModalState = iota
	ModalOpening
	ModalOpen
	ModalScanned
	ModalClosing
)

func (s ModalState) String() string {
	switch s {
	case ModalClosed:
		return "closed"
	case ModalOpening:
		return "opening"
	case ModalOpen:
		return "open"
	case ModalScanned:
		return "scanned"
	case ModalClosing:
		return "closing"
	default:
		return "unknown"
	}
}

var modalTransitions = map[ModalState][]ModalState{
	ModalClosed:  {ModalOpening},
	ModalOpening: {ModalOpen, ModalClosed},
	ModalOpen:    {ModalScanned, ModalClosing},
	ModalScanned: {ModalClosing},
	ModalClosing: {ModalClosed},
}

var (
	errTriggerHidden   = errors.New("trigger not visible")
	errOverlayNotShown = errors.New("overlay did not appear")
)

// ModalContext tracks one trigger through a single open/scan/close cycle.
type ModalContext struct {
	TriggerSelector  string
	TriggerText      string
	ContainerLocator string
	State            ModalState
}

// Transition moves the context to next, rejecting moves the cycle does not
// allow.
func (m *ModalContext) Transition(next ModalState) error {
	for _, allowed := range modalTransitions[m.State] {
		if allowed == next {
			m.State = next
			return nil
		}
	}
	return fmt.Errorf("invalid modal transition %s -> %s", m.State, next)
}

// TriggerKey identifies a logical trigger: its normalised text plus the
// first identifying attribute it carries.
func TriggerKey(el page.Element) string {
	text := strings.ToLower(norm.NFKC.String(strings.Join(strings.Fields(el.Text), " ")))
	var ident string
	for _, name := range []string{"id", "aria-controls", "data-target", "data-bs-target", "data-modal-target", "href"} {
		if v := strings.TrimSpace(el.AttrValue(name)); v != "" {
			ident = name + "=" + v
			break
		}
	}
	if text == "" && ident == "" {
		return "ref=" + el.Ref
	}
	return text + "|" + ident
}

// traverse opens every discovered trigger in turn, strictly one at a time,
// adding the links found in each overlay to set.
func (e *Extractor) traverse(ctx context.Context, doc page.Document, base *url.URL, set *CandidateSet, logger *slog.Logger) OverlayStats {
	var stats OverlayStats
	triggers := e.discoverTriggers(ctx, doc, logger)
	stats.Discovered = len(triggers)

	for _, trigger := range triggers {
		if ctx.Err() != nil {
			break
		}
		mc := &ModalContext{
			TriggerSelector: e.synth.Synthesize(trigger),
			TriggerText:     DisplayText(trigger),
		}
		tlog := logger.With(slog.String("trigger", mc.TriggerSelector))

		found, closed, err := e.cycle(ctx, doc, base, trigger, mc, tlog)
		if errors.Is(err, errTriggerHidden) {
			stats.Skipped++
			tlog.Debug("trigger not visible, skipped")
			continue
		}
		if err != nil {
			stats.Failed++
			tlog.Warn("overlay skipped", slog.String("state", mc.State.String()), slog.Any("error", err))
			continue
		}
		stats.Scanned++
		if !closed {
			stats.Unclosed++
		}
		added := 0
		for _, c := range found {
			if set.Add(c) {
				added++
			}
		}
		tlog.Debug("overlay scanned", slog.Int("links", len(found)), slog.Int("new", added))
	}
	return stats
}

// discoverTriggers collects trigger elements across all patterns, keeping
// the first element seen for each logical trigger.
func (e *Extractor) discoverTriggers(ctx context.Context, doc page.Document, logger *slog.Logger) []page.Element {
	seen := make(map[string]bool)
	var triggers []page.Element
	for _, pattern := range e.opts.Overlays.Triggers {
		elements, err := doc.QueryAll(ctx, nil, pattern)
		if err != nil {
			logger.Debug("trigger pattern failed", slog.String("pattern", pattern), slog.Any("error", err))
			continue
		}
		for _, el := range elements {
			key := TriggerKey(el)
			if seen[key] {
				continue
			}
			seen[key] = true
			triggers = append(triggers, el)
		}
	}
	return triggers
}

// cycle runs Closed -> Opening -> Open -> Scanned -> Closing -> Closed for
// one trigger. It returns the overlay's candidates and whether the overlay
// was seen to close. An error means the overlay was never opened.
func (e *Extractor) cycle(ctx context.Context, doc page.Document, base *url.URL, trigger page.Element, mc *ModalContext, logger *slog.Logger) (found []result.LinkCandidate, closed bool, err error) {
	fresh, err := doc.Refresh(ctx, trigger)
	if err != nil || !IsVisible(fresh) {
		return nil, false, errTriggerHidden
	}
	e.dismissBlocking(ctx, doc, logger)

	if err := mc.Transition(ModalOpening); err != nil {
		return nil, false, err
	}
	before := e.visibleContainers(ctx, doc)
	if err := doc.Click(ctx, fresh); err != nil {
		_ = mc.Transition(ModalClosed)
		return nil, false, fmt.Errorf("click trigger: %w", err)
	}
	container, ok := e.waitForContainer(ctx, doc, before)
	if !ok {
		_ = mc.Transition(ModalClosed)
		// Something may have half-opened.
		_ = doc.PressKey(ctx, "Escape")
		return nil, false, errOverlayNotShown
	}
	if err := mc.Transition(ModalOpen); err != nil {
		return nil, false, err
	}
	mc.ContainerLocator = e.synth.Synthesize(container)

	title := e.resolveTitle(ctx, doc, container, mc.TriggerText)
	found, err = e.scan(ctx, doc, &container, base, scope{
		label:       ModalLabel(title),
		triggerSel:  mc.TriggerSelector,
		triggerText: mc.TriggerText,
	})
	if err != nil {
		logger.Warn("overlay scan failed", slog.Any("error", err))
	} else if err := mc.Transition(ModalScanned); err != nil {
		return nil, false, err
	}

	if err := mc.Transition(ModalClosing); err != nil {
		return nil, false, err
	}
	closed = e.close(ctx, doc, container, logger)
	if !closed {
		logger.Warn("overlay did not close, continuing")
	}
	_ = mc.Transition(ModalClosed)
	return found, closed, nil
}

// visibleContainers returns the refs of overlay containers already shown.
func (e *Extractor) visibleContainers(ctx context.Context, doc page.Document) map[string]bool {
	refs := make(map[string]bool)
	for _, pattern := range e.opts.Overlays.Containers {
		elements, err := doc.QueryAll(ctx, nil, pattern)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if IsVisible(el) {
				refs[el.Ref] = true
			}
		}
	}
	return refs
}

// waitForContainer polls for a visible container not present in before.
func (e *Extractor) waitForContainer(ctx context.Context, doc page.Document, before map[string]bool) (page.Element, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.OpenTimeout)
	defer cancel()

	for {
		for _, pattern := range e.opts.Overlays.Containers {
			elements, err := doc.QueryAll(ctx, nil, pattern)
			if err != nil {
				continue
			}
			for _, el := range elements {
				if !before[el.Ref] && IsVisible(el) {
					return el, true
				}
			}
		}
		if sleep(ctx, e.opts.OverlayPoll) != nil {
			return page.Element{}, false
		}
	}
}

// resolveTitle prefers a heading inside the overlay, then the trigger text.
func (e *Extractor) resolveTitle(ctx context.Context, doc page.Document, container page.Element, triggerText string) string {
	for _, pattern := range e.opts.Overlays.Headings {
		headings, err := doc.QueryAll(ctx, &container, pattern)
		if err != nil {
			continue
		}
		for _, h := range headings {
			if !IsVisible(h) {
				continue
			}
			if title := selector.TruncateText(collapse(h.Text), 80); title != "" {
				return title
			}
		}
	}
	return triggerText
}

// close tries each dismiss control inside the overlay, then Escape.
func (e *Extractor) close(ctx context.Context, doc page.Document, container page.Element, logger *slog.Logger) bool {
	for _, pattern := range e.opts.Overlays.Close {
		controls, err := doc.QueryAll(ctx, &container, pattern)
		if err != nil {
			continue
		}
		for _, control := range controls {
			if !IsVisible(control) {
				continue
			}
			if err := doc.Click(ctx, control); err != nil {
				logger.Debug("close control failed", slog.String("pattern", pattern), slog.Any("error", err))
				continue
			}
			if e.waitClosed(ctx, doc, container) {
				return true
			}
		}
	}

	if err := doc.PressKey(ctx, "Escape"); err != nil {
		logger.Debug("escape failed", slog.Any("error", err))
	}
	return e.waitClosed(ctx, doc, container)
}

func (e *Extractor) waitClosed(ctx context.Context, doc page.Document, container page.Element) bool {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CloseTimeout)
	defer cancel()
	for {
		if !Visible(ctx, doc, container) {
			return true
		}
		if sleep(ctx, e.opts.OverlayPoll) != nil {
			return false
		}
	}
}

// dismissBlocking clicks the first visible control of any known blocking
// banner. Failures are ignored.
func (e *Extractor) dismissBlocking(ctx context.Context, doc page.Document, logger *slog.Logger) {
	for _, pattern := range e.opts.Overlays.Blocking {
		elements, err := doc.QueryAll(ctx, nil, pattern)
		if err != nil {
			continue
		}
		for _, el := range elements {
			if !IsVisible(el) {
				continue
			}
			if err := doc.Click(ctx, el); err == nil {
				logger.Debug("dismissed blocking overlay", slog.String("pattern", pattern))
				_ = sleep(ctx, min(e.opts.OverlayPoll, 250*time.Millisecond))
			}
			break
		}
	}
}
