package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/printerpal/printerpal/internal/cups"
	"github.com/printerpal/printerpal/internal/session"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.confirmRestart {
		return m.renderRestartConfirm()
	}
	return m.renderMain()
}

func (m Model) renderMain() string {
	s := m.theme.Styles()
	st := m.ctrl.State()

	filesPanel := s.Panel
	queuePanel := s.Panel
	if m.focus == paneFiles {
		filesPanel = s.PanelHot
	} else {
		queuePanel = s.PanelHot
	}

	left := filesPanel.Render(m.fileList.View())

	right := lipgloss.JoinVertical(lipgloss.Left,
		s.Panel.Render(m.renderStatus(st)),
		queuePanel.Render(s.Title.Render("Queue")+"\n"+m.jobTable.View()),
		s.Panel.Render(m.renderPrintForm(st)),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter(st))
}

func (m Model) renderStatus(st session.State) string {
	s := m.theme.Styles()
	var b strings.Builder

	b.WriteString(s.Title.Render("Printer"))
	b.WriteString("\n")

	snap := st.Status
	if !snap.CUPSAvailable {
		b.WriteString(s.Danger.Render("CUPS unavailable"))
		return b.String()
	}

	label := snap.DefaultPrinterLabel
	if label == "" {
		label = "no default printer"
	}
	b.WriteString(s.Text.Render(label))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render(fmt.Sprintf("active %d, completed %d",
		snap.Stats.ActiveJobs, snap.Stats.CompletedJobs)))

	if !snap.Scheduler.Running {
		b.WriteString("\n")
		b.WriteString(s.Warning.Render("scheduler stopped"))
	}
	if snap.AirPrint.Enabled {
		b.WriteString("\n")
		b.WriteString(s.Muted.Render("AirPrint auto-registration on"))
	}
	if snap.Host != nil {
		b.WriteString("\n")
		b.WriteString(s.Muted.Render(fmt.Sprintf("%s  cpu %.0f%%  mem %.0f%%  disk %.0f%%",
			snap.Host.Hostname, snap.Host.CPUPercent, snap.Host.MemoryPercent, snap.Host.DiskPercent)))
	}
	return b.String()
}

func (m Model) renderPrintForm(st session.State) string {
	s := m.theme.Styles()
	var b strings.Builder

	b.WriteString(s.Title.Render("Print"))
	b.WriteString("\n")

	selected := st.SelectedFile
	if selected == "" {
		b.WriteString(s.Muted.Render("no file selected (enter to select)"))
		return b.String()
	}

	b.WriteString(s.Text.Render(selected))
	b.WriteString("\n")
	b.WriteString(s.Muted.Render(fmt.Sprintf("mode %s  page %d  copies %d  dest %s",
		m.mode, m.previewPage(), m.copies, printerLabel(m.printer))))

	if st.PreviewError != "" {
		b.WriteString("\n")
		b.WriteString(s.Warning.Render("preview: " + st.PreviewError))
	}
	if st.PrintInFlight {
		b.WriteString("\n")
		b.WriteString(s.Accent.Render("submitting..."))
	}
	return b.String()
}

func (m Model) renderFooter(st session.State) string {
	s := m.theme.Styles()

	link := linkLabel(st.Link)
	var pill string
	switch st.Link {
	case session.LinkLive:
		pill = s.Success.Render(link)
	case session.LinkReconnecting:
		pill = s.Warning.Render(link)
	default:
		pill = s.Danger.Render(link)
	}

	help := s.Footer.Render("enter select  p print  m mode  [/] page  +/- copies  P printer  a airprint  R restart  ? help  q quit")

	line := pill + "  " + help
	if m.flash != "" {
		flashStyle := s.Success
		if m.flashBad {
			flashStyle = s.Danger
		}
		line += "\n" + flashStyle.Render(m.flash)
	}
	return line
}

func (m Model) renderHelp() string {
	s := m.theme.Styles()
	rows := []string{
		s.Title.Render("PrinterPal"),
		"",
		"enter      select the highlighted document",
		"x          delete the highlighted document",
		"p          print the selected document",
		"m          cycle processing mode",
		"[ / ]      previous / next preview page",
		"+ / -      adjust copies (1-99)",
		"P          cycle destination printer",
		"a          re-register AirPrint services",
		"R          restart the host (asks first)",
		"d / e      dark / e-ink display",
		"r          refresh now",
		"tab        switch pane",
		"q          quit",
		"",
		s.Muted.Render("press any key to close"),
	}
	return s.Panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderRestartConfirm() string {
	s := m.theme.Styles()
	body := strings.Join([]string{
		s.Title.Render("Restart host?"),
		"",
		"The print server and any queued jobs will be interrupted.",
		"",
		s.Danger.Render("y") + "  restart    " + s.Muted.Render("esc") + "  cancel",
	}, "\n")
	return s.PanelHot.Render(body)
}

// ─── Render helpers ─────────────────────────────────────────────────────

func queueColumns(width int) []table.Column {
	idW, userW, sizeW := 6, 12, 10
	rawW := width - idW - userW - sizeW
	if rawW < 16 {
		rawW = 16
	}
	return []table.Column{
		{Title: "Job", Width: idW},
		{Title: "User", Width: userW},
		{Title: "Size", Width: sizeW},
		{Title: "Detail", Width: rawW},
	}
}

func queueRows(jobs []cups.QueueJob) []table.Row {
	rows := make([]table.Row, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, table.Row{
			strconv.Itoa(j.JobID),
			j.User,
			j.Size,
			j.Raw,
		})
	}
	return rows
}

func printerLabel(printer string) string {
	if printer == "" {
		return "default"
	}
	return printer
}

func linkLabel(l session.Link) string {
	switch l {
	case session.LinkLive:
		return "● Live"
	case session.LinkReconnecting:
		return "◌ Reconnecting"
	default:
		return "○ Offline"
	}
}
