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

// signupScreen creates an account and returns to login with a success alert.
type signupScreen struct {
	base
	form *formView
}

func newSignupScreen(d *Deps) *signupScreen {
	s := &signupScreen{base: newBase(d)}
	s.form = newFormView(d, form.SignupSchema(),
		fieldSpec{field: form.FieldEmail, placeholder: s.t("signup.email_placeholder")},
		fieldSpec{field: form.FieldPassword, placeholder: s.t("signup.password_placeholder"), secret: true},
		fieldSpec{field: form.FieldConfirmPassword, placeholder: s.t("signup.confirm_placeholder"), secret: true},
	)
	return s
}

func (s *signupScreen) route() nav.Route { return nav.Signup }

func (s *signupScreen) init() tea.Cmd { return s.watch() }

func (s *signupScreen) update(msg tea.Msg) tea.Cmd {
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
				title:   s.t("signup.error_title"),
				body:    s.deps.Catalog.Failure("signup", gateway.Classify(msg.err)),
				isError: true,
			})
		}
		res, _ := msg.result.(gateway.SignUpResult)
		body := s.t("signup.success")
		if res.ProfileErr != nil {
			body += "\n" + s.t("signup.profile_warning")
		}
		to := res.Redirect
		if to == "" {
			to = nav.Login
		}
		return navigate(navTo, to, &alert{title: s.t("signup.success_title"), body: body})

	case tea.KeyMsg:
		k := s.deps.keys
		switch {
		case key.Matches(msg, k.Back):
			return navigate(navBack, "", nil)
		case key.Matches(msg, k.Login):
			return navigate(navTo, nav.Login, nil)
		}
		submit, cmd := s.form.handleKey(msg)
		if submit {
			return s.submit()
		}
		return cmd
	}
	return nil
}

func (s *signupScreen) submit() tea.Cmd {
	ctx, ok := s.form.begin()
	if !ok {
		return nil
	}
	email := s.form.value(form.FieldEmail)
	password := s.form.value(form.FieldPassword)
	gw := s.deps.Gateway
	return submitCmd(ctx, s.form.state, func(ctx context.Context) (any, error) {
		return gw.SignUp(ctx, email, password)
	})
}

func (s *signupScreen) view() string {
	st := s.deps.styles
	var b strings.Builder
	b.WriteString(st.Title.Render(s.t("signup.heading")))
	b.WriteString("\n")
	b.WriteString(s.form.view())
	b.WriteString("\n")
	b.WriteString(st.ButtonActive.Render(s.t("signup.submit")))
	b.WriteString("\n")
	b.WriteString(st.Link.Render(s.t("signup.login_link")))
	b.WriteString("\n")
	return b.String()
}

func (s *signupScreen) bindings() []key.Binding {
	k := s.deps.keys
	return []key.Binding{k.Submit, k.NextField, k.TogglePassword, k.Login, k.Back}
}

func (s *signupScreen) busy() bool { return s.form.state.Submitting() }

func (s *signupScreen) close() {
	s.form.close()
	s.release()
}
