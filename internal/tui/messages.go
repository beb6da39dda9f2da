package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/avatar"
	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
	"github.com/Dicklesworthstone/authdeck/internal/session"
)

// sessionMsg carries one notification from a screen's subscription.
type sessionMsg struct {
	sub  *session.Subscription
	sess identity.Session
	err  error
}

type navOp int

const (
	navPush navOp = iota
	navTo
	navReplace
	navReset
	navBack
)

// navigateMsg asks the root model to change routes.
type navigateMsg struct {
	op    navOp
	to    nav.Route
	alert *alert
}

// alertMsg opens a modal alert on the current screen.
type alertMsg struct {
	alert alert
}

// submitDoneMsg reports a form action's outcome. state identifies the form
// that started it.
type submitDoneMsg struct {
	state  *form.State
	result any
	err    error
}

type photoAction int

const (
	photoFromLibrary photoAction = iota
	photoFromCamera
)

// permissionMsg reports the camera and media library permission requests.
type permissionMsg struct {
	from    screen
	action  photoAction
	granted bool
	err     error
}

// photoMsg reports a library pick or a camera capture.
type photoMsg struct {
	from   screen
	source avatar.Source
	result avatar.Result
	err    error
}

// photoSavedMsg reports the outcome of committing the avatar draft.
type photoSavedMsg struct {
	from screen
	err  error
}

// signedOutMsg reports the outcome of a sign-out.
type signedOutMsg struct {
	from  screen
	route nav.Route
	err   error
}

func navigate(op navOp, to nav.Route, a *alert) tea.Cmd {
	return func() tea.Msg {
		return navigateMsg{op: op, to: to, alert: a}
	}
}

func showAlert(a alert) tea.Cmd {
	return func() tea.Msg {
		return alertMsg{alert: a}
	}
}

// watchSession waits for the next notification on sub. It ends with
// session.ErrReleased once the screen unmounts.
func watchSession(sub *session.Subscription) tea.Cmd {
	return func() tea.Msg {
		sess, err := sub.Next(context.Background())
		return sessionMsg{sub: sub, sess: sess, err: err}
	}
}

// submitCmd runs a form action with the form's context.
func submitCmd(ctx context.Context, st *form.State, run func(ctx context.Context) (any, error)) tea.Cmd {
	return func() tea.Msg {
		res, err := run(ctx)
		return submitDoneMsg{state: st, result: res, err: err}
	}
}
