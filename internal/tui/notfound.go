package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/nav"
)

// notFoundScreen is shown for unknown routes.
type notFoundScreen struct {
	base
}

func newNotFoundScreen(d *Deps) *notFoundScreen {
	return &notFoundScreen{base: newBase(d)}
}

func (s *notFoundScreen) route() nav.Route { return nav.NotFound }

func (s *notFoundScreen) init() tea.Cmd { return s.watch() }

func (s *notFoundScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionMsg:
		_, cmd := s.onSession(msg)
		return cmd
	case tea.KeyMsg:
		if key.Matches(msg, s.deps.keys.Submit, s.deps.keys.Home) {
			return navigate(navReset, nav.Home, nil)
		}
		if key.Matches(msg, s.deps.keys.Back) {
			return navigate(navBack, "", nil)
		}
	}
	return nil
}

func (s *notFoundScreen) view() string {
	st := s.deps.styles
	return st.FieldError.Render(s.t("notfound.heading")) + "\n\n" +
		st.Link.Render(s.t("notfound.home_link")) + "\n"
}

func (s *notFoundScreen) bindings() []key.Binding {
	return []key.Binding{s.deps.keys.Home, s.deps.keys.Back}
}

func (s *notFoundScreen) busy() bool { return false }

func (s *notFoundScreen) close() { s.release() }
