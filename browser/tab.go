package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/lukemcguire/linkscout/page"
)

// clickTimeout bounds a single click when the caller's context has no deadline.
const clickTimeout = 5 * time.Second

// Tab is a Chrome tab. It implements page.Document.
type Tab struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastNet  time.Time
}

var _ page.Document = (*Tab)(nil)

func newTab(ctx context.Context, cancel context.CancelFunc, opts Options) *Tab {
	return &Tab{
		ctx:      ctx,
		cancel:   cancel,
		opts:     opts,
		logger:   opts.Logger,
		inflight: make(map[network.RequestID]struct{}),
		lastNet:  time.Now(),
	}
}

func (t *Tab) setup() []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}
	if len(t.opts.Headers) > 0 {
		headers := make(network.Headers, len(t.opts.Headers))
		for k, v := range t.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	return actions
}

// onEvent tracks in-flight requests for network-idle detection. It runs on
// chromedp's event loop and must not block.
func (t *Tab) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.mu.Lock()
		t.inflight[e.RequestID] = struct{}{}
		t.lastNet = time.Now()
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		t.settle(e.RequestID)
	case *network.EventLoadingFailed:
		t.settle(e.RequestID)
	}
}

func (t *Tab) settle(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastNet = time.Now()
	t.mu.Unlock()
}

// idle reports whether no request has been in flight for the idle window.
func (t *Tab) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && time.Since(t.lastNet) >= t.opts.IdleWindow
}

// run executes actions on the tab, bounded by both ctx and the tab's lifetime.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if t.ctx.Err() != nil {
		return page.ErrClosed
	}
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.ctx.Err() != nil {
			return page.ErrClosed
		}
		return err
	}
	return nil
}

// call invokes an operation of the in-page helper and decodes its result.
func (t *Tab) call(ctx context.Context, op string, res any, args ...any) error {
	if args == nil {
		args = []any{}
	}
	opJSON, err := json.Marshal(op)
	if err != nil {
		return err
	}
	argJSON, err := json.Marshal(args)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("(%s)(%s, %s)", helperJS, opJSON, argJSON)
	return t.run(ctx, chromedp.Evaluate(expr, res, awaitPromise))
}

// Navigate implements page.Document. It returns once the navigation has
// been committed; WaitFor observes the load states.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.mu.Lock()
	clear(t.inflight)
	t.lastNet = time.Now()
	t.mu.Unlock()

	return t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, _, err := cdppage.Navigate(url).Do(ctx)
		if err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if errText != "" {
			return fmt.Errorf("navigate %s: %s", url, errText)
		}
		return nil
	}))
}

// URL implements page.Document.
func (t *Tab) URL(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// WaitFor implements page.Document by polling document.readyState for the
// parse and load states, and the request tracker for network idle.
func (t *Tab) WaitFor(ctx context.Context, state page.LoadState) error {
	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		reached, err := t.reached(ctx, state)
		if err != nil {
			return err
		}
		if reached {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s: %w", state, ctx.Err())
		case <-t.ctx.Done():
			return page.ErrClosed
		case <-ticker.C:
		}
	}
}

func (t *Tab) reached(ctx context.Context, state page.LoadState) (bool, error) {
	if state == page.NetworkIdle {
		return t.idle(), nil
	}
	var readyState string
	if err := t.run(ctx, chromedp.Evaluate(`document.readyState`, &readyState)); err != nil {
		// Evaluation races with navigation; the next poll retries.
		if errors.Is(err, page.ErrClosed) || ctx.Err() != nil {
			return false, err
		}
		t.logger.Debug("readyState evaluate failed", slog.String("error", err.Error()))
		return false, nil
	}
	switch state {
	case page.ContentParsed:
		return readyState == "interactive" || readyState == "complete", nil
	case page.FullyLoaded:
		return readyState == "complete", nil
	}
	return false, fmt.Errorf("wait for %s: %w", state, page.ErrUnsupported)
}

// Count implements page.Document.
func (t *Tab) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := t.call(ctx, "count", &n, selector); err != nil {
		return 0, fmt.Errorf("count %q: %w", selector, err)
	}
	return n, nil
}

// QueryAll implements page.Document.
func (t *Tab) QueryAll(ctx context.Context, scope *page.Element, selector string) ([]page.Element, error) {
	scopeRef := ""
	if scope != nil {
		scopeRef = scope.Ref
	}
	var reply queryReply
	if err := t.call(ctx, "query", &reply, scopeRef, selector); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if reply.Detached {
		return nil, page.ErrDetached
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("query %q: %s", selector, reply.Error)
	}
	return reply.Elements, nil
}

type queryReply struct {
	Elements []page.Element `json:"elements"`
	Detached bool           `json:"detached"`
	Error    string         `json:"error"`
}

// Refresh implements page.Document.
func (t *Tab) Refresh(ctx context.Context, el page.Element) (page.Element, error) {
	var snap *page.Element
	if err := t.call(ctx, "refresh", &snap, el.Ref); err != nil {
		return page.Element{}, fmt.Errorf("refresh: %w", err)
	}
	if snap == nil {
		return page.Element{}, page.ErrDetached
	}
	return *snap, nil
}

// Click implements page.Document with a real mouse click at the element's
// centre, after scrolling it into view.
func (t *Tab) Click(ctx context.Context, el page.Element) error {
	var found bool
	if err := t.call(ctx, "reveal", &found, el.Ref); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	if !found {
		return page.ErrDetached
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, clickTimeout)
		defer cancel()
	}
	if err := t.run(ctx, chromedp.Click(refSelector(el.Ref), chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

// PressKey implements page.Document.
func (t *Tab) PressKey(ctx context.Context, key string) error {
	if err := t.run(ctx, chromedp.KeyEvent(keyFor(key))); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// ScrollTo implements page.Document.
func (t *Tab) ScrollTo(ctx context.Context, y int) error {
	var ignored any
	if err := t.call(ctx, "scroll", &ignored, y); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// ScrollHeight implements page.Document.
func (t *Tab) ScrollHeight(ctx context.Context) (int, error) {
	var h int
	if err := t.call(ctx, "height", &h); err != nil {
		return 0, fmt.Errorf("scroll height: %w", err)
	}
	return h, nil
}

// Screenshot implements page.Document with a full-page PNG.
func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := t.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	t.cancel()
	return nil
}

func refSelector(ref string) string {
	b, _ := json.Marshal(ref)
	return fmt.Sprintf("[%s=%s]", refAttr, b)
}

func keyFor(name string) string {
	switch name {
	case "Escape", "Esc":
		return kb.Escape
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	default:
		return name
	}
}

// awaitPromise lets helper operations return promises.
func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}
