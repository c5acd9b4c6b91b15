// Package browser drives headless Chrome through chromedp and exposes each
// tab as a page.Document.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configures the Chrome process.
type Options struct {
	// ChromePath overrides the Chrome executable (empty = auto-detect).
	ChromePath string
	// Headful shows the browser window.
	Headful bool
	UserAgent string
	// Headers are sent with every request a tab makes.
	Headers map[string]string
	// WindowWidth and WindowHeight size the viewport (default 1366x900).
	WindowWidth  int
	WindowHeight int
	// IdleWindow is how long a tab must have no requests in flight to count
	// as network-idle (default 500ms).
	IdleWindow time.Duration
	// PollInterval is the load-state polling period (default 50ms).
	PollInterval time.Duration
	Logger       *slog.Logger
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		WindowWidth:  1366,
		WindowHeight: 900,
		IdleWindow:   500 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.WindowWidth <= 0 || o.WindowHeight <= 0 {
		o.WindowWidth, o.WindowHeight = def.WindowWidth, def.WindowHeight
	}
	if o.IdleWindow <= 0 {
		o.IdleWindow = def.IdleWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// allocatorOptions builds the Chrome command line.
func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", !o.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(o.WindowWidth, o.WindowHeight),
	)
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if o.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(o.ChromePath))
	}
	return opts
}

// Browser is one Chrome process. Tabs opened from it share its profile.
type Browser struct {
	opts          Options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New starts Chrome. ctx bounds the browser's lifetime; Close releases it
// earlier.
func New(ctx context.Context, opts Options) (*Browser, error) {
	opts = opts.withDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			opts.Logger.Debug(fmt.Sprintf(format, args...))
		}))

	// The first Run starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &Browser{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewTab opens a tab.
func (b *Browser) NewTab() (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	tab := newTab(tabCtx, cancel, b.opts)
	chromedp.ListenTarget(tabCtx, tab.onEvent)

	if err := chromedp.Run(tabCtx, tab.setup()...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return tab, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if err != nil {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}
