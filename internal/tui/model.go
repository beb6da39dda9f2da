package tui

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/avatar"
	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/i18n"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
	"github.com/Dicklesworthstone/authdeck/internal/session"
)

// Deps are the services screens call into.
type Deps struct {
	Gateway  *gateway.Gateway
	Observer *session.Observer
	Catalog  *i18n.Catalog
	Picker   avatar.Picker

	// Chooser shows the file picker when Picker.PickFromLibrary asks for a
	// file. Nil when the picker brings its own chooser.
	Chooser *LibraryChooser

	Policy form.SubmitPolicy
	Logger *slog.Logger

	keys   keyMap
	styles Styles
}

// Model is the root Bubble Tea model. It owns the navigation stack and the
// mounted screen.
type Model struct {
	deps    *Deps
	router  *nav.Router
	screen  screen
	alert   *alert
	keys    keyMap
	styles  Styles
	help    help.Model
	spinner spinner.Model
	width   int
	height  int
}

// New creates the root model showing start.
func New(d Deps, start nav.Route) Model {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.keys = defaultKeyMap(d.Catalog)
	d.styles = DefaultStyles()

	deps := &d
	router := nav.NewRouter(start)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = d.styles.Success

	return Model{
		deps:    deps,
		router:  router,
		screen:  mount(deps, router.Current()),
		keys:    d.keys,
		styles:  d.styles,
		help:    help.New(),
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.screen.init(), m.spinner.Tick)
}

// Route returns the current route.
func (m Model) Route() nav.Route {
	return m.router.Current()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, m.screen.update(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case navigateMsg:
		return m.navigate(msg)

	case alertMsg:
		a := msg.alert
		m.alert = &a
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, m.screen.update(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}

	if m.alert != nil {
		if key.Matches(msg, m.keys.Submit, m.keys.Back) {
			m.alert = nil
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	return m, m.screen.update(msg)
}

func (m Model) navigate(msg navigateMsg) (tea.Model, tea.Cmd) {
	from := m.router.Current()

	switch msg.op {
	case navPush:
		m.router.Push(msg.to)
	case navTo:
		m.router.Navigate(msg.to)
	case navReplace:
		m.router.Replace(msg.to)
	case navReset:
		m.router.Reset(msg.to)
	case navBack:
		if _, ok := m.router.Back(); !ok {
			return m, nil
		}
	}

	if msg.alert != nil {
		a := *msg.alert
		m.alert = &a
	}

	to := m.router.Current()
	m.deps.Logger.Debug("navigate", "from", from.String(), "to", to.String(), "depth", m.router.Depth())

	m.screen.close()
	m.screen = mount(m.deps, to)
	return m, m.screen.init()
}

// Close unmounts the current screen.
func (m Model) Close() {
	m.screen.close()
}

// View implements tea.Model.
func (m Model) View() string {
	if m.alert != nil {
		return m.alertView()
	}

	var b strings.Builder
	b.WriteString(m.styles.Header.Render(m.deps.Catalog.T("route." + m.router.Current().String())))
	b.WriteString("\n")
	b.WriteString(m.screen.view())
	b.WriteString("\n")

	if m.screen.busy() {
		b.WriteString(m.styles.StatusBar.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.deps.Catalog.T("status.submitting"))))
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(screenKeys{short: m.screen.bindings(), all: m.keys}))
	return b.String()
}

// Run starts the TUI and blocks until it exits.
func Run(d Deps, start nav.Route) error {
	p := tea.NewProgram(New(d, start), tea.WithAltScreen())
	final, err := p.Run()
	if m, ok := final.(Model); ok {
		m.Close()
	}
	if err != nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
