package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// alert is a modal message dismissed with enter or esc.
type alert struct {
	title   string
	body    string
	isError bool
}

func (m Model) alertView() string {
	a := m.alert
	titleStyle := m.styles.AlertTitle
	if a.isError {
		titleStyle = m.styles.AlertError
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(a.title))
	b.WriteString("\n")
	b.WriteString(m.styles.Text.Render(a.body))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Muted.Render(m.deps.Catalog.T("alert.dismiss")))

	box := m.styles.Alert.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
