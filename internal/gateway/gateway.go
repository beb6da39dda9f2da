// Package gateway turns screen intents into provider calls and provider
// errors into failure categories. Every call is logged and recorded in the
// activity log.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dicklesworthstone/authdeck/internal/db"
	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/nav"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
	"github.com/Dicklesworthstone/authdeck/internal/session"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("gateway: no user is signed in")

// Options configures a Gateway.
type Options struct {
	// Activity receives one event per call. Optional.
	Activity db.EventLogger
	// Sessions measures signed-in time for sign_out events. Optional.
	Sessions *db.SessionTracker
	// Timeout bounds each provider call. Zero means no extra bound.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Gateway is the credential action façade used by every screen and command.
type Gateway struct {
	provider provider.Provider
	observer *session.Observer
	activity db.EventLogger
	sessions *db.SessionTracker
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a gateway. obs must be observing p.
func New(p provider.Provider, obs *session.Observer, opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gateway{
		provider: p,
		observer: obs,
		activity: opts.Activity,
		sessions: opts.Sessions,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With("component", "gateway", "provider", p.ID()),
	}
}

// Session returns the observer's current session.
func (g *Gateway) Session() identity.Session {
	return g.observer.Current()
}

// SignIn signs in with email and password. On failure the session is left
// as it was.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	email = strings.TrimSpace(email)
	user, err := g.provider.SignInWithEmailAndPassword(ctx, email, password)
	if err != nil {
		g.fail("sign_in", email, err)
		return g.observer.Current(), fmt.Errorf("sign in: %w", err)
	}

	g.sessions.Start(g.provider.ID(), user.UID)
	g.record(db.Event{Type: db.EventSignIn, Email: user.Email, UID: user.UID})
	g.logger.Info("signed in", "uid", user.UID)
	return g.observer.Current(), nil
}

// SignUpResult is the outcome of a successful account creation.
type SignUpResult struct {
	Session identity.Session
	// DisplayName is the name derived from the email.
	DisplayName string
	// ProfileErr is set when the account exists but setting the display name
	// failed. It is not retried.
	ProfileErr error
	// Redirect is where the screen goes next.
	Redirect nav.Route
}

// SignUp creates an account and sets its display name to the local part of
// the email.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (SignUpResult, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	email = strings.TrimSpace(email)
	user, err := g.provider.CreateUserWithEmailAndPassword(ctx, email, password)
	if err != nil {
		g.fail("sign_up", email, err)
		return SignUpResult{Session: g.observer.Current()}, fmt.Errorf("sign up: %w", err)
	}
	g.sessions.Start(g.provider.ID(), user.UID)
	g.record(db.Event{Type: db.EventSignUp, Email: user.Email, UID: user.UID})
	g.logger.Info("account created", "uid", user.UID)

	result := SignUpResult{
		DisplayName: identity.DerivedDisplayName(email),
		Redirect:    nav.Login,
	}

	name := result.DisplayName
	if _, err := g.provider.UpdateProfile(ctx, provider.ProfileUpdate{DisplayName: &name}); err != nil {
		result.ProfileErr = fmt.Errorf("set display name: %w", err)
		g.fail("profile_update", user.Email, err)
		g.logger.Warn("account created without display name", "uid", user.UID, "error", err)
	} else {
		g.applyLocal(user.UID, func(u *identity.Identity) { u.DisplayName = name })
		g.record(db.Event{
			Type:    db.EventProfileUpdate,
			Email:   user.Email,
			UID:     user.UID,
			Details: map[string]any{"display_name": name},
		})
	}

	result.Session = g.observer.Current()
	return result, nil
}

// SignOut signs out and returns the route to show next, which is always
// home. The session is Anonymous afterwards even if the provider failed.
func (g *Gateway) SignOut(ctx context.Context) (nav.Route, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	prev := g.observer.Current()
	var email string
	if u := prev.User(); u != nil {
		email = u.Email
	}

	err := g.provider.SignOut(ctx)
	if err != nil {
		g.fail("sign_out", email, err)
		g.logger.Warn("provider sign-out failed, clearing local session", "error", err)
	}
	g.observer.ClearLocal()

	if prev.IsAuthenticated() {
		user := prev.User()
		g.record(db.Event{
			Type:     db.EventSignOut,
			Email:    user.Email,
			UID:      user.UID,
			Duration: g.sessions.End(g.provider.ID(), user.UID),
		})
		g.logger.Info("signed out", "uid", user.UID)
	}

	if err != nil {
		return nav.Home, fmt.Errorf("sign out: %w", err)
	}
	return nav.Home, nil
}

// SendPasswordReset asks the provider to send a reset message. The session
// is not touched.
func (g *Gateway) SendPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	email = strings.TrimSpace(email)
	if err := g.provider.SendPasswordResetEmail(ctx, email); err != nil {
		g.fail("password_reset", email, err)
		return fmt.Errorf("send password reset: %w", err)
	}
	g.record(db.Event{Type: db.EventPasswordReset, Email: email})
	g.logger.Info("password reset requested")
	return nil
}

// UpdateDisplayName changes the signed-in user's display name and applies it
// to the cached session without waiting for a provider notification.
func (g *Gateway) UpdateDisplayName(ctx context.Context, name string) (identity.Session, error) {
	name = strings.TrimSpace(name)
	return g.updateProfile(ctx, provider.ProfileUpdate{DisplayName: &name}, func(u *identity.Identity) {
		u.DisplayName = name
	})
}

// UpdatePhotoURL commits an avatar to the signed-in user's profile.
func (g *Gateway) UpdatePhotoURL(ctx context.Context, uri string) (identity.Session, error) {
	return g.updateProfile(ctx, provider.ProfileUpdate{PhotoURL: &uri}, func(u *identity.Identity) {
		u.PhotoURL = uri
	})
}

func (g *Gateway) updateProfile(ctx context.Context, update provider.ProfileUpdate, apply func(*identity.Identity)) (identity.Session, error) {
	current := g.observer.Current()
	if !current.IsAuthenticated() {
		return current, ErrNotAuthenticated
	}

	ctx, cancel := g.bound(ctx)
	defer cancel()

	user := current.User()
	if _, err := g.provider.UpdateProfile(ctx, update); err != nil {
		g.fail("profile_update", user.Email, err)
		return g.observer.Current(), fmt.Errorf("update profile: %w", err)
	}

	g.applyLocal(user.UID, apply)

	details := map[string]any{}
	if update.DisplayName != nil {
		details["display_name"] = *update.DisplayName
	}
	if update.PhotoURL != nil {
		details["photo_url"] = *update.PhotoURL
	}
	g.record(db.Event{Type: db.EventProfileUpdate, Email: user.Email, UID: user.UID, Details: details})
	g.logger.Info("profile updated", "uid", user.UID)
	return g.observer.Current(), nil
}

// applyLocal updates the cached identity when it still belongs to uid.
func (g *Gateway) applyLocal(uid string, apply func(*identity.Identity)) {
	if g.observer.Current().UID() != uid {
		return
	}
	g.observer.ApplyLocal(apply)
}

func (g *Gateway) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout > 0 {
		return context.WithTimeout(ctx, g.timeout)
	}
	return context.WithCancel(ctx)
}

func (g *Gateway) fail(op, email string, err error) {
	f := Classify(err)
	g.logger.Info("action failed", "op", op, "category", string(f.Category), "code", f.Code, "error", err)
	g.record(db.Event{
		Type:     db.EventError,
		Email:    email,
		Category: string(f.Category),
		Details:  map[string]any{"op": op, "code": f.Code, "message": f.Message},
	})
}

func (g *Gateway) record(e db.Event) {
	if g.activity == nil {
		return
	}
	e.Provider = g.provider.ID()
	if err := g.activity.LogEvent(e); err != nil {
		g.logger.Warn("failed to record activity", "type", e.Type, "error", err)
	}
}
