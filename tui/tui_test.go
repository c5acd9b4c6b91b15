package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/linkscout/crawler"
	"github.com/lukemcguire/linkscout/result"
)

type stubRunner struct {
	res *result.Result
	err error
}

func (s stubRunner) Run(context.Context) (*result.Result, error) {
	return s.res, s.err
}

func brokenResult() *result.Result {
	res := &result.Result{
		Pages: []result.PageReport{
			{
				URL: "https://example.com/",
				Links: []result.LinkReport{
					{
						Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/dead", LocationLabel: "Navigation"},
						Outcome:   result.ValidationOutcome{URL: "https://example.com/dead", Status: 404, StatusText: "404 Not Found", IsBroken: true, ErrorCategory: result.Category4xx},
					},
					{
						Candidate: result.LinkCandidate{
							NormalizedURL:        "https://example.com/err",
							LocationLabel:        "Modal: Contact",
							ModalTriggerSelector: "#contact-btn",
							ModalTriggerText:     "Contact",
						},
						Outcome: result.ValidationOutcome{URL: "https://example.com/err", Error: "connection refused", IsBroken: true, ErrorCategory: result.CategoryConnectionRefused},
					},
					{
						Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/ok", LocationLabel: "Footer"},
						Outcome:   result.ValidationOutcome{URL: "https://example.com/ok", Status: 200},
					},
				},
			},
			{URL: "https://example.com/private", Error: "disallowed by robots.txt"},
		},
		Stats: result.CrawlStats{Duration: 3 * time.Second},
	}
	res.Tally()
	return res
}

func TestNewModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan crawler.Event, 10)
	runner := stubRunner{}
	model := NewModel(ctx, cancel, runner, progressCh, 0)

	if model.ctx != ctx {
		t.Error("expected ctx to be stored in model")
	}
	if model.runner != runner {
		t.Error("expected runner to be stored in model")
	}
	if model.progressCh != progressCh {
		t.Error("expected progressCh to be stored in model")
	}
	if model.maxPages != 1 {
		t.Errorf("maxPages = %d, want at least 1", model.maxPages)
	}
	if model.checked != 0 || model.broken != 0 || model.done {
		t.Error("expected a fresh model")
	}
	if model.Init() == nil {
		t.Error("Init() should return a batch command")
	}
}

func TestStartRun(t *testing.T) {
	res := brokenResult()
	model := NewModel(context.Background(), func() {}, stubRunner{res: res}, nil, 1)

	msg := model.startRun()()
	done, ok := msg.(DoneMsg)
	if !ok {
		t.Fatalf("startRun() message = %T, want DoneMsg", msg)
	}
	if done.Result != res || done.Err != nil {
		t.Errorf("DoneMsg = %+v", done)
	}

	failing := NewModel(context.Background(), func() {}, stubRunner{err: context.Canceled}, nil, 1)
	done = failing.startRun()().(DoneMsg)
	if !errors.Is(done.Err, context.Canceled) {
		t.Errorf("DoneMsg.Err = %v, want wrapped context.Canceled", done.Err)
	}
}

func TestWaitForProgress(t *testing.T) {
	ch := make(chan crawler.Event, 1)
	ch <- crawler.Event{Kind: crawler.LinkChecked, URL: "https://example.com/a", Checked: 1}

	msg := waitForProgress(ch)()
	progress, ok := msg.(ProgressMsg)
	if !ok || progress.Event.URL != "https://example.com/a" {
		t.Errorf("waitForProgress() = %#v", msg)
	}

	close(ch)
	if msg := waitForProgress(ch)(); msg != nil {
		t.Errorf("closed channel message = %#v, want nil", msg)
	}
}

func TestUpdate_ProgressEvents(t *testing.T) {
	model := Model{progressCh: make(chan crawler.Event, 1), maxPages: 5}

	steps := []crawler.Event{
		{Kind: crawler.PageStarted, Page: "https://example.com/"},
		{Kind: crawler.LinkChecked, URL: "https://example.com/a", Checked: 5, Broken: 1},
		{Kind: crawler.Warning, Message: "robots.txt check: timeout", Checked: 5, Broken: 1},
		{Kind: crawler.PageDone, Page: "https://example.com/", Pages: 1, Queued: 2, Checked: 5, Broken: 1},
	}
	var cmd tea.Cmd
	for _, evt := range steps {
		var updated tea.Model
		updated, cmd = model.Update(ProgressMsg{Event: evt})
		model = updated.(Model)
	}

	if model.checked != 5 || model.broken != 1 {
		t.Errorf("counters = %d checked / %d broken, want 5 / 1", model.checked, model.broken)
	}
	if model.page != "https://example.com/" || model.current != "https://example.com/a" {
		t.Errorf("page = %q, current = %q", model.page, model.current)
	}
	if model.pages != 1 || model.queued != 2 {
		t.Errorf("pages = %d, queued = %d", model.pages, model.queued)
	}
	if model.warning == "" {
		t.Error("expected the warning to be kept")
	}
	if cmd == nil {
		t.Error("expected a command to re-subscribe to progress")
	}

	view := model.View()
	for _, want := range []string{"Auditing https://example.com/", "pages 1/5", "links checked 5", "broken 1", "robots.txt check"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestUpdate_DoneMsg(t *testing.T) {
	res := brokenResult()
	updated, cmd := Model{}.Update(DoneMsg{Result: res})
	model := updated.(Model)

	if !model.done || model.GetResult() != res {
		t.Error("expected the result to be stored")
	}
	if !model.HasBrokenLinks() {
		t.Error("HasBrokenLinks() = false")
	}
	if cmd == nil {
		t.Error("expected tea.Quit")
	}
}

// cancelRunner blocks until its context ends, then returns what it had
// audited so far.
type cancelRunner struct {
	partial *result.Result
}

func (r cancelRunner) Run(ctx context.Context) (*result.Result, error) {
	<-ctx.Done()
	return r.partial, fmt.Errorf("run interrupted: %w", ctx.Err())
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestUpdate_QuitKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	partial := brokenResult()
	model := NewModel(ctx, cancel, cancelRunner{partial: partial}, make(chan crawler.Event), 3)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	model = updated.(Model)
	if !model.quitting {
		t.Error("ctrl+c should mark the model as quitting")
	}
	if ctx.Err() == nil {
		t.Error("ctrl+c should cancel the run")
	}
	if isQuit(cmd) {
		t.Fatal("ctrl+c quit before the run returned its result")
	}
	if !strings.Contains(model.View(), "collecting partial results") {
		t.Errorf("view = %q, want stopping notice", model.View())
	}

	done, ok := model.startRun()().(DoneMsg)
	if !ok {
		t.Fatal("expected DoneMsg once the run is cancelled")
	}
	updated, cmd = model.Update(done)
	model = updated.(Model)

	if !isQuit(cmd) {
		t.Error("expected tea.Quit after the run returned")
	}
	if model.GetResult() != partial {
		t.Error("partial result was dropped")
	}
	if !errors.Is(model.Err(), context.Canceled) {
		t.Errorf("Err() = %v, want wrapped context.Canceled", model.Err())
	}
}

func TestUpdate_SecondQuitLeavesAtOnce(t *testing.T) {
	calls := 0
	model := Model{cancel: func() { calls++ }}

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if isQuit(cmd) || calls != 1 {
		t.Fatalf("first q: quit=%v cancels=%d, want no quit and one cancel", isQuit(cmd), calls)
	}
	_, cmd = updated.(Model).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !isQuit(cmd) {
		t.Error("second q should quit immediately")
	}
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
}

func TestUpdate_SpinnerAndResize(t *testing.T) {
	model := NewModel(context.Background(), func() {}, stubRunner{}, nil, 1)
	updated, _ := model.Update(spinner.TickMsg{})
	updated, _ = updated.(Model).Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	if got := updated.(Model).width; got != 120 {
		t.Errorf("width = %d, want 120", got)
	}
	if got := updated.(Model).bar.Width; got != 60 {
		t.Errorf("bar width = %d, want 60", got)
	}
}

func TestHasBrokenLinks(t *testing.T) {
	tests := []struct {
		name   string
		result *result.Result
		want   bool
	}{
		{"nil result", nil, false},
		{"no pages", &result.Result{}, false},
		{"broken links", brokenResult(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Model{result: tt.result}).HasBrokenLinks(); got != tt.want {
				t.Errorf("HasBrokenLinks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRenderSummary_NilResult(t *testing.T) {
	if RenderSummary(nil) == "" {
		t.Error("expected non-empty output for nil result")
	}
}

func TestRenderSummary_NoBrokenLinks(t *testing.T) {
	res := &result.Result{
		Pages: []result.PageReport{{
			URL: "https://example.com/",
			Links: []result.LinkReport{{
				Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/ok"},
				Outcome:   result.ValidationOutcome{Status: 200},
			}},
		}},
		Stats: result.CrawlStats{Duration: 2 * time.Second},
	}
	res.Tally()

	output := RenderSummary(res)
	if !strings.Contains(output, "No broken links found") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "checked 1 URLs") {
		t.Errorf("expected URL count, got: %s", output)
	}
}

func TestRenderSummary_WithBrokenLinks(t *testing.T) {
	output := RenderSummary(brokenResult())

	for _, want := range []string{
		"example.com/dead",
		"404 Not Found",
		"connection refused",
		"Navigation",
		`via "Contact"`,
		"could not be audited: disallowed by robots.txt",
		"Found 2 broken links",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("summary missing %q:\n%s", want, output)
		}
	}
	if strings.Contains(output, "example.com/ok") {
		t.Error("healthy links should not be listed")
	}
	if strings.Index(output, "Client Errors (4xx)") > strings.Index(output, "Connection Refused (") {
		t.Error("4xx should be listed before connection errors")
	}
}

func TestRenderSummary_Warnings(t *testing.T) {
	res := &result.Result{
		Pages: []result.PageReport{{
			URL: "https://example.com/",
			Links: []result.LinkReport{
				{
					Candidate: result.LinkCandidate{NormalizedURL: "https://linkedin.com/company/x"},
					Outcome: result.ValidationOutcome{
						Status:  999,
						Warning: "linkedin.com: 999, but this site commonly blocks automated checks",
					},
				},
				{
					Candidate: result.LinkCandidate{NormalizedURL: "https://example.com/docs"},
					Outcome:   result.ValidationOutcome{Status: 200, RetryNote: "needs a trailing slash"},
				},
			},
		}},
	}
	res.Tally()

	output := RenderSummary(res)
	for _, want := range []string{
		"No broken links found",
		"Warnings (2)",
		"https://linkedin.com/company/x: linkedin.com: 999",
		"https://example.com/docs: needs a trailing slash",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("summary missing %q:\n%s", want, output)
		}
	}
}

func TestView_DoneWithError(t *testing.T) {
	model := Model{done: true, err: context.Canceled}
	if !strings.Contains(model.View(), "Error") {
		t.Error("expected error message in done view")
	}
}
