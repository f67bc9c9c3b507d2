// Package tui is the terminal front end: a live view of the upload inbox
// and print queue with a keyboard-driven print form, fed by the server's
// event stream.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/printerpal/printerpal/internal/client"
	"github.com/printerpal/printerpal/internal/printcfg"
	"github.com/printerpal/printerpal/internal/session"
	"github.com/printerpal/printerpal/internal/status"
	"github.com/printerpal/printerpal/internal/uploads"
)

// Options configures the UI.
type Options struct {
	Context context.Context
	Client  *client.Client
	Session *session.Controller
}

type pane int

const (
	paneFiles pane = iota
	paneQueue
)

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx    context.Context
	client *client.Client
	ctrl   *session.Controller

	updates <-chan status.StatusUpdate
	links   <-chan client.LinkState

	keys  keyMap
	theme Theme

	fileList list.Model
	jobTable table.Model

	width  int
	height int
	ready  bool
	focus  pane

	mode    string
	printer string
	copies  int

	link session.Link

	showHelp       bool
	confirmRestart bool

	flash    string
	flashBad bool
	flashSeq int
}

type fileItem struct {
	file uploads.File
}

func (i fileItem) Title() string       { return i.file.Name }
func (i fileItem) Description() string { return i.file.SizeH }
func (i fileItem) FilterValue() string { return i.file.Name }

// New creates the root model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	st := opts.Session.State()
	theme := themeFor(st.Prefs)

	delegate := list.NewDefaultDelegate()
	fl := list.New(nil, delegate, 0, 0)
	fl.Title = "Documents"
	fl.SetShowStatusBar(false)
	fl.SetFilteringEnabled(false)
	fl.SetShowHelp(false)

	jt := table.New(
		table.WithColumns(queueColumns(60)),
		table.WithFocused(false),
		table.WithHeight(6),
	)

	sub := client.NewSubscriber(opts.Client)
	updates, links := sub.Subscribe(ctx)

	return Model{
		ctx:      ctx,
		client:   opts.Client,
		ctrl:     opts.Session,
		updates:  updates,
		links:    links,
		keys:     DefaultKeyMap(),
		theme:    theme,
		fileList: fl,
		jobTable: jt,
		mode:     "",
		copies:   1,
		link:     session.LinkReconnecting,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.loadConfigCmd(),
		m.refreshCmd(),
		waitForUpdate(m.updates),
		waitForLink(m.links),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizePanels()
		return m, nil

	case updateMsg:
		m.ctrl.ApplyUpdate(status.StatusUpdate(msg))
		m.syncFromState()
		return m, waitForUpdate(m.updates)

	case linkMsg:
		switch client.LinkState(msg) {
		case client.LinkLive:
			m.ctrl.MarkLive()
		default:
			m.ctrl.MarkReconnecting()
		}
		m.link = m.ctrl.State().Link
		return m, waitForLink(m.links)

	case configLoadedMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("config: %v", msg.err), true)
		}
		if m.mode == "" {
			m.mode = m.ctrl.State().Config.Printing.DefaultMode
		}
		return m, nil

	case refreshDoneMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("refresh: %v", msg.err), true)
		}
		m.syncFromState()
		return m, nil

	case printDoneMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("print failed: %v", msg.err), true)
		}
		return m.withFlash(msg.output, false)

	case airprintDoneMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("airprint: %v", msg.err), true)
		}
		return m.withFlash("AirPrint services re-registered", false)

	case restartDoneMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("restart: %v", msg.err), true)
		}
		return m.withFlash("Host restart requested", false)

	case deleteDoneMsg:
		if msg.err != nil {
			return m.withFlash(fmt.Sprintf("delete %s: %v", msg.name, msg.err), true)
		}
		return m, m.refreshCmd()

	case flashClearMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmRestart {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirmRestart = false
			return m, m.restartCmd()
		case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
			m.confirmRestart = false
			return m, nil
		}
		return m, nil
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focus == paneFiles {
			m.focus = paneQueue
			m.jobTable.Focus()
		} else {
			m.focus = paneFiles
			m.jobTable.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Select):
		if item, ok := m.fileList.SelectedItem().(fileItem); ok {
			m.ctrl.Select(item.file.Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.fileList.SelectedItem().(fileItem); ok {
			return m, m.deleteCmd(item.file.Name)
		}
		return m, nil

	case key.Matches(msg, m.keys.Mode):
		m.mode = nextMode(m.mode)
		m.ctrl.SetPreviewMode(m.mode)
		return m, nil

	case key.Matches(msg, m.keys.PagePrev):
		m.ctrl.SetPreviewPage(m.previewPage() - 1)
		return m, nil

	case key.Matches(msg, m.keys.PageNext):
		m.ctrl.SetPreviewPage(m.previewPage() + 1)
		return m, nil

	case key.Matches(msg, m.keys.Printer):
		m.printer = nextPrinter(m.ctrl.State().Status, m.printer)
		return m, nil

	case key.Matches(msg, m.keys.CopiesUp):
		if m.copies < 99 {
			m.copies++
		}
		return m, nil

	case key.Matches(msg, m.keys.CopiesDown):
		if m.copies > 1 {
			m.copies--
		}
		return m, nil

	case key.Matches(msg, m.keys.Print):
		return m, m.printCmd()

	case key.Matches(msg, m.keys.AirPrint):
		return m, m.airprintCmd()

	case key.Matches(msg, m.keys.Restart):
		m.confirmRestart = true
		return m, nil

	case key.Matches(msg, m.keys.Dark):
		st := m.ctrl.State()
		_ = m.ctrl.SetDark(!st.Prefs.Dark)
		m.theme = themeFor(m.ctrl.State().Prefs)
		return m, nil

	case key.Matches(msg, m.keys.EInk):
		st := m.ctrl.State()
		_ = m.ctrl.SetEInk(!st.Prefs.EInk)
		m.theme = themeFor(m.ctrl.State().Prefs)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case paneFiles:
		m.fileList, cmd = m.fileList.Update(msg)
	case paneQueue:
		m.jobTable, cmd = m.jobTable.Update(msg)
	}
	return m, cmd
}

func (m *Model) previewPage() int {
	req, ok := m.ctrl.PreviewRequest()
	if !ok {
		return 1
	}
	return req.Page
}

// syncFromState rebuilds the list and table from the session state.
func (m *Model) syncFromState() {
	st := m.ctrl.State()

	items := make([]list.Item, 0, len(st.Files))
	for _, f := range st.Files {
		items = append(items, fileItem{file: f})
	}
	m.fileList.SetItems(items)

	m.jobTable.SetRows(queueRows(st.Status.Jobs))
	m.link = st.Link
}

func (m *Model) resizePanels() {
	listWidth := m.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	m.fileList.SetSize(listWidth-2, m.height-4)

	tableWidth := m.width - listWidth - 6
	if tableWidth < 40 {
		tableWidth = 40
	}
	m.jobTable.SetColumns(queueColumns(tableWidth))
}

func (m Model) withFlash(msg string, bad bool) (tea.Model, tea.Cmd) {
	m.flash = msg
	m.flashBad = bad
	m.flashSeq++
	return m, clearFlashAfter(m.flashSeq, 5*time.Second)
}

// ─── Commands ───────────────────────────────────────────────────────────

func (m Model) loadConfigCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		return configLoadedMsg{err: m.ctrl.LoadConfig(ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		return refreshDoneMsg{err: m.ctrl.Refresh(ctx)}
	}
}

func (m Model) printCmd() tea.Cmd {
	mode, printer, copies := m.mode, m.printer, m.copies
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		out, err := m.ctrl.SubmitPrint(ctx, mode, printer, copies)
		return printDoneMsg{output: out, err: err}
	}
}

func (m Model) airprintCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		out, err := m.client.EnsureAirPrint(ctx)
		return airprintDoneMsg{output: out, err: err}
	}
}

func (m Model) restartCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		return restartDoneMsg{err: m.client.RestartHost(ctx)}
	}
}

func (m Model) deleteCmd(name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := commandContext(m.ctx)
		defer cancel()
		return deleteDoneMsg{name: name, err: m.client.DeleteFile(ctx, name)}
	}
}

// nextMode cycles through the processing modes.
func nextMode(current string) string {
	modes := printcfg.ValidModes
	for i, mode := range modes {
		if mode == current {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

// nextPrinter cycles destination choices: empty (server default) first,
// then each known printer.
func nextPrinter(snap status.Snapshot, current string) string {
	names := snap.PrinterNames()
	if len(names) == 0 {
		return ""
	}
	if current == "" {
		return names[0]
	}
	for i, name := range names {
		if name == current {
			if i+1 == len(names) {
				return ""
			}
			return names[i+1]
		}
	}
	return ""
}
