// Package tui provides the Bubble Tea terminal UI for linkscout, showing
// live audit progress and a styled summary of the run.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/linkscout/crawler"
	"github.com/lukemcguire/linkscout/result"
)

// Runner runs an audit to completion.
type Runner interface {
	Run(ctx context.Context) (*result.Result, error)
}

// Model is the Bubble Tea model for the audit TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	runner     Runner
	spinner    spinner.Model
	bar        progress.Model
	progressCh <-chan crawler.Event
	maxPages   int

	checked  int
	broken   int
	pages    int
	queued   int
	page     string
	current  string
	warning  string
	quitting bool
	done     bool
	result   *result.Result
	err      error
	width    int
}

// NewModel creates a TUI model wired to runner and its event channel.
// maxPages sizes the page progress bar.
func NewModel(ctx context.Context, cancel context.CancelFunc, runner Runner, progressCh <-chan crawler.Event, maxPages int) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		runner:     runner,
		spinner:    spin,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		progressCh: progressCh,
		maxPages:   max(1, maxPages),
	}
}

// Init starts the spinner, the run, and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), waitForProgress(m.progressCh))
}

func (m Model) startRun() tea.Cmd {
	return func() tea.Msg {
		res, err := m.runner.Run(m.ctx)
		if err != nil {
			err = fmt.Errorf("audit: %w", err)
		}
		return DoneMsg{Result: res, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The first press stops the run and waits for its partial
			// result; a second press leaves at once.
			if m.done || m.quitting {
				return m, tea.Quit
			}
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(60, max(10, msg.Width-20))

	case ProgressMsg:
		m.apply(msg.Event)
		return m, waitForProgress(m.progressCh)

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(evt crawler.Event) {
	m.checked = evt.Checked
	m.broken = evt.Broken
	m.pages = evt.Pages
	switch evt.Kind {
	case crawler.PageStarted:
		m.page = evt.Page
		m.current = ""
	case crawler.LinkChecked:
		m.current = evt.URL
	case crawler.PageDone:
		m.queued = evt.Queued
	case crawler.Warning:
		m.warning = evt.Message
	}
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done && m.result != nil {
		view := RenderSummary(m.result)
		if m.err != nil {
			view += errorStyle.Render("Error: "+m.err.Error()) + "\n"
		}
		return view
	}
	if m.done && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	if m.quitting {
		return fmt.Sprintf("%s Stopping after %d pages, collecting partial results (press again to quit now)\n",
			m.spinner.View(), m.pages)
	}

	total := max(1, m.maxPages, m.pages+m.queued)
	view := fmt.Sprintf("%s Auditing %s\n%s pages %d/%d, links checked %d, broken %d\n%s\n",
		m.spinner.View(), m.page,
		m.bar.ViewAs(float64(m.pages)/float64(total)), m.pages, total,
		m.checked, m.broken,
		dimStyle.Render("  "+m.current))
	if m.warning != "" {
		view += warnStyle.Render("  "+m.warning) + "\n"
	}
	return view
}

// HasBrokenLinks reports whether the run found any broken links.
func (m Model) HasBrokenLinks() bool {
	return m.result != nil && m.result.HasBroken()
}

// GetResult returns the run result for output formatting.
func (m Model) GetResult() *result.Result {
	return m.result
}

// Err returns the run error, if any.
func (m Model) Err() error {
	return m.err
}
