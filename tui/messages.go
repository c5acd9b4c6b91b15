package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/linkscout/crawler"
	"github.com/lukemcguire/linkscout/result"
)

// ProgressMsg carries one run event into the model.
type ProgressMsg struct {
	Event crawler.Event
}

// DoneMsg signals the run has finished.
type DoneMsg struct {
	Result *result.Result
	Err    error
}

// waitForProgress reads one event from ch. A closed channel yields no message.
func waitForProgress(ch <-chan crawler.Event) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return ProgressMsg{Event: evt}
	}
}
