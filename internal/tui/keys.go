package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/Dicklesworthstone/authdeck/internal/i18n"
)

// keyMap defines all keybindings for the TUI.
type keyMap struct {
	// Forms
	NextField      key.Binding
	PrevField      key.Binding
	Submit         key.Binding
	TogglePassword key.Binding

	// Links between screens
	Login   key.Binding
	Signup  key.Binding
	Forgot  key.Binding
	Profile key.Binding
	Home    key.Binding

	// Profile actions
	EditName  key.Binding
	PickPhoto key.Binding
	TakePhoto key.Binding
	SavePhoto key.Binding
	SignOut   key.Binding

	// General
	Back key.Binding
	Help key.Binding
	Quit key.Binding
}

// defaultKeyMap returns the default keybindings. Form screens only use
// ctrl-chords so letters stay typeable.
func defaultKeyMap(c *i18n.Catalog) keyMap {
	return keyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab/↓", c.T("help.next_field")),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab/↑", c.T("help.prev_field")),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", c.T("help.submit")),
		),
		TogglePassword: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", c.T("help.toggle_password")),
		),
		Login: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", c.T("login.submit")),
		),
		Signup: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", c.T("signup.heading")),
		),
		Forgot: key.NewBinding(
			key.WithKeys("ctrl+f"),
			key.WithHelp("ctrl+f", c.T("login.forgot_link")),
		),
		Profile: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", c.T("home.profile")),
		),
		Home: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", c.T("notfound.home_link")),
		),
		EditName: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", c.T("profile.edit")),
		),
		PickPhoto: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", c.T("profile.pick_photo")),
		),
		TakePhoto: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", c.T("profile.take_photo")),
		),
		SavePhoto: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", c.T("profile.save_photo")),
		),
		SignOut: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", c.T("profile.sign_out")),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", c.T("help.back")),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", c.T("help.help")),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", c.T("help.quit")),
		),
	}
}

// screenKeys adapts a screen's bindings to help.KeyMap.
type screenKeys struct {
	short []key.Binding
	all   keyMap
}

// ShortHelp implements help.KeyMap.
func (k screenKeys) ShortHelp() []key.Binding {
	return append(append([]key.Binding(nil), k.short...), k.all.Help, k.all.Quit)
}

// FullHelp implements help.KeyMap.
func (k screenKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		k.short,
		{k.all.Back, k.all.Help, k.all.Quit},
	}
}
