package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/nav"
)

// homeScreen greets the signed-in user or offers to sign in.
type homeScreen struct {
	base
}

func newHomeScreen(d *Deps) *homeScreen {
	return &homeScreen{base: newBase(d)}
}

func (s *homeScreen) route() nav.Route { return nav.Home }

func (s *homeScreen) init() tea.Cmd { return s.watch() }

func (s *homeScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionMsg:
		_, cmd := s.onSession(msg)
		return cmd
	case tea.KeyMsg:
		k := s.deps.keys
		switch {
		case key.Matches(msg, k.Submit, k.Login) && !s.sess.IsAuthenticated():
			return navigate(navTo, nav.Login, nil)
		case key.Matches(msg, k.Profile):
			return navigate(navTo, nav.Profile, nil)
		case key.Matches(msg, k.Back):
			return navigate(navBack, "", nil)
		}
	}
	return nil
}

func (s *homeScreen) view() string {
	st := s.deps.styles
	var b strings.Builder
	if s.sess.IsAuthenticated() {
		b.WriteString(st.Success.Render(s.t("home.greeting", s.sess.User().Label())))
		b.WriteString("\n")
	} else {
		b.WriteString(st.Text.Render(s.t("home.anonymous")))
		b.WriteString("\n\n")
		b.WriteString(st.ButtonActive.Render(s.t("home.login_now")))
		b.WriteString("\n")
	}
	b.WriteString(st.Link.Render(s.t("home.profile")))
	b.WriteString("\n")
	return b.String()
}

func (s *homeScreen) bindings() []key.Binding {
	if s.sess.IsAuthenticated() {
		return []key.Binding{s.deps.keys.Profile}
	}
	return []key.Binding{s.deps.keys.Submit, s.deps.keys.Profile}
}

func (s *homeScreen) busy() bool { return false }

func (s *homeScreen) close() { s.release() }
