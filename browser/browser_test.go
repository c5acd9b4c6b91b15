package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/lukemcguire/linkscout/page"
)

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.WindowWidth != 1366 || opts.WindowHeight != 900 {
		t.Errorf("window = %dx%d, want 1366x900", opts.WindowWidth, opts.WindowHeight)
	}
	if opts.IdleWindow != 500*time.Millisecond {
		t.Errorf("IdleWindow = %v, want 500ms", opts.IdleWindow)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to slog.Default()")
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len(Options{}.withDefaults().allocatorOptions())
	full := len(Options{UserAgent: "ua", ChromePath: "/usr/bin/chromium"}.withDefaults().allocatorOptions())
	if full != base+2 {
		t.Errorf("allocator options = %d, want %d with user agent and exec path", full, base+2)
	}
}

func TestRefSelector(t *testing.T) {
	if got := refSelector("r12"); got != `[data-linkscout-ref="r12"]` {
		t.Errorf("refSelector() = %s", got)
	}
}

func TestKeyFor(t *testing.T) {
	tests := map[string]string{
		"Escape": kb.Escape,
		"Esc":    kb.Escape,
		"Enter":  kb.Enter,
		"a":      "a",
	}
	for in, want := range tests {
		if got := keyFor(in); got != want {
			t.Errorf("keyFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdle(t *testing.T) {
	tab := newTab(context.Background(), func() {}, Options{IdleWindow: 10 * time.Millisecond}.withDefaults())
	tab.mu.Lock()
	tab.inflight["1"] = struct{}{}
	tab.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	if tab.idle() {
		t.Error("tab with a request in flight reported idle")
	}
	tab.settle("1")
	if tab.idle() {
		t.Error("tab reported idle before the idle window elapsed")
	}
	time.Sleep(20 * time.Millisecond)
	if !tab.idle() {
		t.Error("tab not idle after the idle window")
	}
}

func TestClosedTab(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tab := newTab(ctx, cancel, Options{}.withDefaults())
	_ = tab.Close()
	if _, err := tab.Count(context.Background(), "a"); !errors.Is(err, page.ErrClosed) {
		t.Errorf("Count() on closed tab = %v, want ErrClosed", err)
	}
}

// TestTabAgainstChrome drives a real browser. It needs Chrome and runs only
// when LINKSCOUT_CHROME_TESTS is set.
func TestTabAgainstChrome(t *testing.T) {
	if os.Getenv("LINKSCOUT_CHROME_TESTS") == "" {
		t.Skip("set LINKSCOUT_CHROME_TESTS=1 to run browser tests")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<nav><a id="home" href="/">Home</a></nav>
			<a href="/hidden" style="display:none">Hidden</a>
			<div class="card"><a href="/more">Read more</a></div>
			<button id="open" onclick="document.getElementById('dlg').showModal()">Open</button>
			<dialog id="dlg"><a href="/inside">Inside</a></dialog>
		</body></html>`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := New(ctx, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer b.Close()

	tab, err := b.NewTab()
	if err != nil {
		t.Fatalf("NewTab() error = %v", err)
	}
	defer tab.Close()

	if err := tab.Navigate(ctx, server.URL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if err := tab.WaitFor(ctx, page.FullyLoaded); err != nil {
		t.Fatalf("WaitFor() error = %v", err)
	}

	links, err := tab.QueryAll(ctx, nil, "a[href]")
	if err != nil {
		t.Fatalf("QueryAll() error = %v", err)
	}
	if len(links) != 4 {
		t.Fatalf("found %d links, want 4", len(links))
	}
	if links[1].Style.Display != "none" {
		t.Errorf("hidden link display = %q", links[1].Style.Display)
	}

	more, err := tab.QueryAll(ctx, nil, `div.card a:contains("Read more")`)
	if err != nil || len(more) != 1 {
		t.Fatalf(":contains query = %v, %v", more, err)
	}

	buttons, err := tab.QueryAll(ctx, nil, "#open")
	if err != nil || len(buttons) != 1 {
		t.Fatalf("button query = %v, %v", buttons, err)
	}
	if err := tab.Click(ctx, buttons[0]); err != nil {
		t.Fatalf("Click() error = %v", err)
	}
	inside, err := tab.Refresh(ctx, links[3])
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if inside.Box.Width == 0 {
		t.Error("dialog link still has no box after opening")
	}
	if err := tab.PressKey(ctx, "Escape"); err != nil {
		t.Fatalf("PressKey() error = %v", err)
	}

	shot, err := tab.Screenshot(ctx)
	if err != nil || len(shot) == 0 {
		t.Errorf("Screenshot() = %d bytes, %v", len(shot), err)
	}
}
