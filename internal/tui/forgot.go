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

// forgotScreen sends a password reset email, then returns to login.
type forgotScreen struct {
	base
	form *formView
}

func newForgotScreen(d *Deps) *forgotScreen {
	s := &forgotScreen{base: newBase(d)}
	s.form = newFormView(d, form.ForgotPasswordSchema(),
		fieldSpec{field: form.FieldEmail, placeholder: s.t("forgot.email_placeholder")},
	)
	return s
}

func (s *forgotScreen) route() nav.Route { return nav.ForgotPassword }

func (s *forgotScreen) init() tea.Cmd { return s.watch() }

func (s *forgotScreen) update(msg tea.Msg) tea.Cmd {
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
				body:    s.deps.Catalog.Failure("forgotpassword", gateway.Classify(msg.err)),
				isError: true,
			})
		}
		return navigate(navTo, nav.Login, &alert{title: s.t("forgot.success_title"), body: s.t("forgot.success")})

	case tea.KeyMsg:
		if key.Matches(msg, s.deps.keys.Back) {
			return navigate(navBack, "", nil)
		}
		submit, cmd := s.form.handleKey(msg)
		if submit {
			return s.submit()
		}
		return cmd
	}
	return nil
}

func (s *forgotScreen) submit() tea.Cmd {
	ctx, ok := s.form.begin()
	if !ok {
		return nil
	}
	email := s.form.value(form.FieldEmail)
	gw := s.deps.Gateway
	return submitCmd(ctx, s.form.state, func(ctx context.Context) (any, error) {
		return nil, gw.SendPasswordReset(ctx, email)
	})
}

func (s *forgotScreen) view() string {
	st := s.deps.styles
	var b strings.Builder
	b.WriteString(st.Title.Render(s.t("forgot.heading")))
	b.WriteString("\n")
	b.WriteString(s.form.view())
	b.WriteString("\n")
	b.WriteString(st.ButtonActive.Render(s.t("forgot.submit")))
	b.WriteString("\n")
	b.WriteString(st.Link.Render(s.t("forgot.back_link")))
	b.WriteString("\n")
	return b.String()
}

func (s *forgotScreen) bindings() []key.Binding {
	return []key.Binding{s.deps.keys.Submit, s.deps.keys.Back}
}

func (s *forgotScreen) busy() bool { return s.form.state.Submitting() }

func (s *forgotScreen) close() {
	s.form.close()
	s.release()
}
