// Package firebase implements provider.Provider against the Firebase
// Identity Toolkit REST API.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
	"github.com/Dicklesworthstone/authdeck/internal/sessionfile"
)

// ID is the registry identifier of the Firebase provider.
const ID = "firebase"

// refreshSkew refreshes ID tokens slightly before they expire.
const refreshSkew = time.Minute

// Config configures the Firebase provider.
type Config struct {
	APIKey string

	// IdentityToolkitURL and SecureTokenURL override the public endpoints.
	IdentityToolkitURL string
	SecureTokenURL     string

	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
	Timeout    time.Duration

	// Session persists the signed-in user between runs. Optional.
	Session       *sessionfile.Store
	WatchSession  bool
	WatchDebounce time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Provider talks to Firebase Authentication over REST.
type Provider struct {
	provider.Notifier

	cfg     Config
	rest    *restClient
	oauth   *oauth2.Config
	logger  *slog.Logger
	watcher *sessionfile.Watcher
	cancel  context.CancelFunc

	opMu sync.Mutex
}

var _ provider.Provider = (*Provider)(nil)

// New creates a Firebase provider and restores any persisted session.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("firebase provider: api key is required")
	}
	if cfg.IdentityToolkitURL == "" {
		cfg.IdentityToolkitURL = DefaultIdentityToolkitURL
	}
	if cfg.SecureTokenURL == "" {
		cfg.SecureTokenURL = DefaultSecureTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Provider{
		cfg: cfg,
		rest: &restClient{
			apiKey:  cfg.APIKey,
			baseURL: strings.TrimRight(cfg.IdentityToolkitURL, "/"),
			http:    cfg.HTTPClient,
		},
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.SecureTokenURL + "?key=" + cfg.APIKey,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: cfg.Logger.With("provider", ID),
	}

	if cfg.Session != nil {
		stored, err := cfg.Session.Load()
		if err != nil {
			p.logger.Warn("ignoring unreadable session file", "error", err)
		} else if stored != nil {
			p.SetCurrent(stored)
		}
		if cfg.WatchSession {
			if err := p.startWatcher(); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// ID implements provider.Provider.
func (p *Provider) ID() string { return ID }

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// SignInWithEmailAndPassword implements provider.Provider.
func (p *Provider) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	return p.passwordAuth(ctx, "signInWithPassword", email, password)
}

// CreateUserWithEmailAndPassword implements provider.Provider. The new
// account is signed in.
func (p *Provider) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	return p.passwordAuth(ctx, "signUp", email, password)
}

func (p *Provider) passwordAuth(ctx context.Context, method, email, password string) (*identity.Identity, error) {
	var resp authResponse
	if err := p.rest.call(ctx, method, passwordRequest{
		Email:             strings.TrimSpace(email),
		Password:          password,
		ReturnSecureToken: true,
	}, &resp); err != nil {
		return nil, err
	}

	user := p.identityFrom(resp)

	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.commit(user)
	return user.Clone(), nil
}

// SignOut implements provider.Provider. Firebase sign-out is client side.
func (p *Provider) SignOut(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.commit(nil)
	return nil
}

// SendPasswordResetEmail implements provider.Provider.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	return p.rest.call(ctx, "sendOobCode", map[string]string{
		"requestType": "PASSWORD_RESET",
		"email":       strings.TrimSpace(email),
	}, nil)
}

// UpdateProfile implements provider.Provider. The server does not push a
// session notification for profile changes and neither does this client.
func (p *Provider) UpdateProfile(ctx context.Context, update provider.ProfileUpdate) (*identity.Identity, error) {
	current := p.CurrentUser()
	if current == nil {
		return nil, provider.NewError(provider.CodeNoCurrentUser, "No user is signed in.")
	}

	current, err := p.fresh(ctx, current)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"idToken":           current.IDToken,
		"returnSecureToken": true,
	}
	var deleteAttrs []string
	if update.DisplayName != nil {
		if *update.DisplayName == "" {
			deleteAttrs = append(deleteAttrs, "DISPLAY_NAME")
		} else {
			body["displayName"] = *update.DisplayName
		}
	}
	if update.PhotoURL != nil {
		if *update.PhotoURL == "" {
			deleteAttrs = append(deleteAttrs, "PHOTO_URL")
		} else {
			body["photoUrl"] = *update.PhotoURL
		}
	}
	if len(deleteAttrs) > 0 {
		body["deleteAttribute"] = deleteAttrs
	}

	var resp authResponse
	if err := p.rest.call(ctx, "update", body, &resp); err != nil {
		return nil, err
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	latest := p.CurrentUser()
	if latest == nil || latest.UID != current.UID {
		return nil, provider.NewError(provider.CodeNoCurrentUser, "The user signed out during the update.")
	}
	if update.DisplayName != nil {
		latest.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		latest.PhotoURL = *update.PhotoURL
	}
	if resp.IDToken != "" {
		latest.IDToken = resp.IDToken
		latest.RefreshToken = resp.RefreshToken
		latest.ExpiresAt = resp.expiry(p.cfg.Now())
	} else {
		latest.IDToken = current.IDToken
		latest.RefreshToken = current.RefreshToken
		latest.ExpiresAt = current.ExpiresAt
	}
	p.SetCurrent(latest)
	p.persist(latest)
	return latest.Clone(), nil
}

// Reload fetches the signed-in user's profile from the server without
// notifying listeners.
func (p *Provider) Reload(ctx context.Context) (*identity.Identity, error) {
	current := p.CurrentUser()
	if current == nil {
		return nil, provider.NewError(provider.CodeNoCurrentUser, "No user is signed in.")
	}
	current, err := p.fresh(ctx, current)
	if err != nil {
		return nil, err
	}

	var resp lookupResponse
	if err := p.rest.call(ctx, "lookup", map[string]string{"idToken": current.IDToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, provider.NewError(provider.CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	u := resp.Users[0]
	if u.Disabled {
		return nil, provider.NewError(provider.CodeUserDisabled, "The user account has been disabled by an administrator.")
	}

	current.Email = u.Email
	current.DisplayName = u.DisplayName
	current.PhotoURL = u.PhotoURL
	current.EmailVerified = u.EmailVerified

	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.SetCurrent(current)
	p.persist(current)
	return current.Clone(), nil
}

// Close stops the session watcher.
func (p *Provider) Close() error {
	if p.watcher == nil {
		return nil
	}
	p.cancel()
	return p.watcher.Stop()
}

// fresh returns user with a valid ID token, refreshing it through the secure
// token endpoint when it is close to expiry.
func (p *Provider) fresh(ctx context.Context, user *identity.Identity) (*identity.Identity, error) {
	if user.ExpiresAt.IsZero() || p.cfg.Now().Add(refreshSkew).Before(user.ExpiresAt) {
		return user, nil
	}
	if user.RefreshToken == "" {
		return nil, provider.NewError(provider.CodeUserTokenExpired, "The user's credential is no longer valid.")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: user.RefreshToken}).Token()
	if err != nil {
		return nil, refreshError(ctx, err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = tok.AccessToken
	}

	refreshed := user.Clone()
	refreshed.IDToken = idToken
	if tok.RefreshToken != "" {
		refreshed.RefreshToken = tok.RefreshToken
	}
	refreshed.ExpiresAt = tok.Expiry
	if claims, err := identity.ExtractFromJWT(idToken); err == nil && !claims.ExpiresAt.IsZero() {
		refreshed.ExpiresAt = claims.ExpiresAt
	}
	p.logger.Debug("refreshed id token", "uid", refreshed.UID, "expires_at", refreshed.ExpiresAt)

	p.opMu.Lock()
	if cur := p.CurrentUser(); cur != nil && cur.UID == refreshed.UID {
		p.SetCurrent(refreshed)
		p.persist(refreshed)
	}
	p.opMu.Unlock()
	return refreshed, nil
}

func refreshError(ctx context.Context, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if pe := decodeRESTError(rErr.Body); pe.Code != provider.CodeInternalError {
			return pe
		}
		return provider.WrapError(provider.CodeUserTokenExpired, "The user's credential is no longer valid.", err)
	}
	return transportError(ctx, err)
}

func (p *Provider) identityFrom(resp authResponse) *identity.Identity {
	user := &identity.Identity{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		PhotoURL:     resp.PhotoURL,
		ProviderID:   "password",
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.expiry(p.cfg.Now()),
	}
	if claims, err := identity.ExtractFromJWT(resp.IDToken); err == nil {
		user.EmailVerified = claims.EmailVerified
		if user.UID == "" {
			user.UID = claims.UID
		}
		if claims.ProviderID != "" {
			user.ProviderID = claims.ProviderID
		}
	}
	return user
}

func (p *Provider) commit(user *identity.Identity) {
	p.persist(user)
	p.Publish(user)
}

func (p *Provider) persist(user *identity.Identity) {
	if p.cfg.Session == nil {
		return
	}
	if err := p.cfg.Session.Save(user); err != nil {
		p.logger.Warn("failed to persist session", "error", err)
	}
}

func (p *Provider) startWatcher() error {
	w, err := sessionfile.NewWatcher(p.cfg.Session, sessionfile.WatcherConfig{
		DebounceInterval: p.cfg.WatchDebounce,
		Logger:           p.logger,
		OnChange: func(user *identity.Identity) {
			p.opMu.Lock()
			defer p.opMu.Unlock()
			p.Publish(user)
		},
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		cancel()
		w.Stop()
		return err
	}
	p.watcher = w
	p.cancel = cancel
	return nil
}
