package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color palette - modern dark theme.
var (
	colorBlue     = lipgloss.Color("#4f8cff")
	colorGreen    = lipgloss.Color("#2fd576")
	colorYellow   = lipgloss.Color("#f2c94c")
	colorRed      = lipgloss.Color("#ff6b6b")
	colorWhite    = lipgloss.Color("#e6edf3")
	colorGray     = lipgloss.Color("#9aa4b2")
	colorDarkGray = lipgloss.Color("#1f2937")
)

// Styles holds all the lipgloss styles for the TUI.
type Styles struct {
	// Route header
	Header lipgloss.Style
	Title  lipgloss.Style

	// Forms
	Label        lipgloss.Style
	Input        lipgloss.Style
	FocusedInput lipgloss.Style
	FieldError   lipgloss.Style

	// Text
	Text    lipgloss.Style
	Muted   lipgloss.Style
	Link    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style

	// Buttons
	Button       lipgloss.Style
	ButtonActive lipgloss.Style

	// Status bar
	StatusBar lipgloss.Style

	// Alerts
	Alert      lipgloss.Style
	AlertTitle lipgloss.Style
	AlertError lipgloss.Style
}

// DefaultStyles returns the default style configuration.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorBlue).
			Padding(0, 1).
			MarginBottom(1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginBottom(1),

		Label: lipgloss.NewStyle().
			Foreground(colorGray),

		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDarkGray).
			Padding(0, 1),

		FocusedInput: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(0, 1),

		FieldError: lipgloss.NewStyle().
			Foreground(colorRed),

		Text: lipgloss.NewStyle().
			Foreground(colorWhite),

		Muted: lipgloss.NewStyle().
			Foreground(colorGray).
			Italic(true),

		Link: lipgloss.NewStyle().
			Foreground(colorBlue).
			Underline(true),

		Success: lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(colorYellow),

		Button: lipgloss.NewStyle().
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray),

		ButtonActive: lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(colorWhite).
			Background(colorBlue).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue),

		StatusBar: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(colorGray),

		Alert: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(1, 2),

		AlertTitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue).
			MarginBottom(1),

		AlertError: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorRed).
			MarginBottom(1),
	}
}
