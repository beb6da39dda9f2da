package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
)

// loginScreen signs in with email and password. Success replaces the stack
// with home.
type loginScreen struct {
	base
	form *formView
}

func newLoginScreen(d *Deps) *loginScreen {
	s := &loginScreen{base: newBase(d)}
	s.form = newFormView(d, form.LoginSchema(),
		fieldSpec{field: form.FieldEmail, placeholder: s.t("login.email_placeholder")},
		fieldSpec{field: form.FieldPassword, placeholder: s.t("login.password_placeholder"), secret: true},
	)
	return s
}

func (s *loginScreen) route() nav.Route { return nav.Login }

func (s *loginScreen) init() tea.Cmd { return s.watch() }

func (s *loginScreen) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case sessionMsg:
		_, cmd := s.onSession(msg)
		return cmd

	case submitDoneMsg:
		if !s.form.owns(msg) {
			return nil
		}
		if msg.err != nil {
			return showAlert(alert{
				title:   s.t("alert.error"),
				body:    s.deps.Catalog.Failure("login", gateway.Classify(msg.err)),
				isError: true,
			})
		}
		return navigate(navReset, nav.Home, nil)

	case tea.KeyMsg:
		k := s.deps.keys
		switch {
		case key.Matches(msg, k.Back):
			return navigate(navBack, "", nil)
		case key.Matches(msg, k.Forgot):
			return navigate(navPush, nav.ForgotPassword, nil)
		case key.Matches(msg, k.Signup):
			return navigate(navPush, nav.Signup, nil)
		}
		submit, cmd := s.form.handleKey(msg)
		if submit {
			return s.submit()
		}
		return cmd
	}
	return nil
}

func (s *loginScreen) submit() tea.Cmd {
	ctx, ok := s.form.begin()
	if !ok {
		return nil
	}
	email := s.form.value(form.FieldEmail)
	password := s.form.value(form.FieldPassword)
	gw := s.deps.Gateway
	return submitCmd(ctx, s.form.state, func(ctx context.Context) (any, error) {
		return gw.SignIn(ctx, email, password)
	})
}

func (s *loginScreen) view() string {
	st := s.deps.styles
	var b strings.Builder
	b.WriteString(st.Title.Render(s.t("login.heading")))
	b.WriteString("\n")
	b.WriteString(s.form.view())
	b.WriteString("\n")
	b.WriteString(st.ButtonActive.Render(s.t("login.submit")))
	b.WriteString("\n")
	b.WriteString(st.Link.Render(s.t("login.forgot_link")))
	b.WriteString("\n")
	b.WriteString(st.Link.Render(s.t("login.signup_link")))
	b.WriteString("\n")
	return b.String()
}

func (s *loginScreen) bindings() []key.Binding {
	k := s.deps.keys
	return []key.Binding{k.Submit, k.NextField, k.TogglePassword, k.Forgot, k.Signup, k.Back}
}

func (s *loginScreen) busy() bool { return s.form.state.Submitting() }

func (s *loginScreen) close() {
	s.form.close()
	s.release()
}
