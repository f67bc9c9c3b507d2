package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/printerpal/printerpal/internal/prefs"
)

// Theme defines colors for the UI. The e-ink theme sticks to pure
// black-on-white because the target panels cannot shade.
type Theme struct {
	Name string

	Text    string
	Muted   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Border  string
}

var (
	lightTheme = Theme{
		Name:    "light",
		Text:    "#1a1a1a",
		Muted:   "#6b6b6b",
		Accent:  "#0a6cbd",
		Success: "#1f7a33",
		Warning: "#9a6b00",
		Danger:  "#b3261e",
		Border:  "#9a9a9a",
	}
	darkTheme = Theme{
		Name:    "dark",
		Text:    "#e6e6e6",
		Muted:   "#8a8a8a",
		Accent:  "#6cb6ff",
		Success: "#5fd38d",
		Warning: "#e3b341",
		Danger:  "#ff7b72",
		Border:  "#555555",
	}
	einkTheme = Theme{
		Name:    "eink",
		Text:    "#000000",
		Muted:   "#000000",
		Accent:  "#000000",
		Success: "#000000",
		Warning: "#000000",
		Danger:  "#000000",
		Border:  "#000000",
	}
)

// themeFor maps display prefs to a theme.
func themeFor(p prefs.Prefs) Theme {
	switch {
	case p.EInk:
		return einkTheme
	case p.Dark:
		return darkTheme
	default:
		return lightTheme
	}
}

// Styles holds the derived lipgloss styles.
type Styles struct {
	Title    lipgloss.Style
	Text     lipgloss.Style
	Muted    lipgloss.Style
	Accent   lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Danger   lipgloss.Style
	Panel    lipgloss.Style
	PanelHot lipgloss.Style
	Footer   lipgloss.Style
}

// Styles returns lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(t.Accent)),
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
		Accent: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),
		Danger: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),
		PanelHot: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Accent)).
			Padding(0, 1),
		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),
	}
}
