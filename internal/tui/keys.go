package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	Quit     key.Binding
	Help     key.Binding
	Tab      key.Binding
	Select   key.Binding
	Refresh  key.Binding
	Delete   key.Binding
	Print    key.Binding
	Mode     key.Binding
	PagePrev key.Binding
	PageNext key.Binding
	Printer    key.Binding
	CopiesUp   key.Binding
	CopiesDown key.Binding
	AirPrint   key.Binding
	Restart  key.Binding
	Dark     key.Binding
	EInk     key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Switch pane"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Select file"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Delete file"),
		),
		Print: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Print"),
		),
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Cycle mode"),
		),
		PagePrev: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "Previous page"),
		),
		PageNext: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "Next page"),
		),
		Printer: key.NewBinding(
			key.WithKeys("P"),
			key.WithHelp("P", "Cycle printer"),
		),
		CopiesUp: key.NewBinding(
			key.WithKeys("+"),
			key.WithHelp("+", "More copies"),
		),
		CopiesDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "Fewer copies"),
		),
		AirPrint: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Re-register AirPrint"),
		),
		Restart: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Restart host"),
		),
		Dark: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "Dark mode"),
		),
		EInk: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "E-ink mode"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc", "Cancel"),
		),
	}
}
