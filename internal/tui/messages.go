package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/printerpal/printerpal/internal/client"
	"github.com/printerpal/printerpal/internal/status"
)

type updateMsg status.StatusUpdate

type linkMsg client.LinkState

type configLoadedMsg struct{ err error }

type printDoneMsg struct {
	output string
	err    error
}

type airprintDoneMsg struct {
	output string
	err    error
}

type restartDoneMsg struct{ err error }

type deleteDoneMsg struct {
	name string
	err  error
}

type refreshDoneMsg struct{ err error }

type flashClearMsg struct{ seq int }

const commandTimeout = 60 * time.Second

// waitForUpdate blocks on the event stream and hands the next push to the
// update loop. The model re-issues it after every message.
func waitForUpdate(ch <-chan status.StatusUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func waitForLink(ch <-chan client.LinkState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return linkMsg(s)
	}
}

func clearFlashAfter(seq int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return flashClearMsg{seq: seq}
	})
}

func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, commandTimeout)
}
