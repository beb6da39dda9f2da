package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
	"github.com/Dicklesworthstone/authdeck/internal/session"
)

// screen is one mounted route. Screens are created on mount and closed on
// unmount; a closed screen never sees another message.
type screen interface {
	route() nav.Route
	init() tea.Cmd
	update(msg tea.Msg) tea.Cmd
	view() string
	bindings() []key.Binding
	// busy reports an action in flight.
	busy() bool
	close()
}

// base holds a screen's dependencies and its session subscription.
type base struct {
	deps *Deps
	sub  *session.Subscription
	sess identity.Session
}

func newBase(d *Deps) base {
	sub := d.Observer.Subscribe()
	return base{deps: d, sub: sub, sess: sub.Latest()}
}

func (b *base) watch() tea.Cmd {
	return watchSession(b.sub)
}

// onSession applies a notification for this screen's subscription. It
// reports whether msg belonged to it.
func (b *base) onSession(msg sessionMsg) (bool, tea.Cmd) {
	if msg.sub != b.sub {
		return false, nil
	}
	if msg.err != nil {
		return true, nil
	}
	b.sess = msg.sess
	return true, b.watch()
}

func (b *base) t(key string, args ...any) string {
	return b.deps.Catalog.T(key, args...)
}

func (b *base) release() {
	b.sub.Release()
}

// mount creates the screen for r.
func mount(d *Deps, r nav.Route) screen {
	switch r {
	case nav.Home:
		return newHomeScreen(d)
	case nav.Login:
		return newLoginScreen(d)
	case nav.Signup:
		return newSignupScreen(d)
	case nav.ForgotPassword:
		return newForgotScreen(d)
	case nav.Profile:
		return newProfileScreen(d)
	default:
		return newNotFoundScreen(d)
	}
}
