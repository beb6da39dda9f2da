// Package local implements an offline identity provider backed by the
// authdeck SQLite database. It mimics the hosted provider's error codes so
// every screen behaves the same against either backend.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dicklesworthstone/authdeck/internal/db"
	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
	"github.com/Dicklesworthstone/authdeck/internal/sessionfile"
)

// ID is the registry identifier of the local provider.
const ID = "local"

const minPasswordLength = 6

// Config configures a local provider.
type Config struct {
	DB         *db.DB
	SigningKey []byte

	// AllowSignup disables account creation when false.
	AllowSignup bool

	// MaxFailedAttempts wrong passwords in a row lock the account for
	// LockoutWindow. Zero disables the lockout.
	MaxFailedAttempts int
	LockoutWindow     time.Duration

	// TokenTTL is the ID token lifetime. Default: 1h
	TokenTTL time.Duration
	// ResetTTL is how long a password reset code stays valid. Default: 1h
	ResetTTL time.Duration

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int

	// Session persists the signed-in user between runs. Optional.
	Session *sessionfile.Store
	// WatchSession turns external session file edits into notifications.
	WatchSession bool
	// WatchDebounce defaults to the watcher's own interval.
	WatchDebounce time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Provider is the local identity provider.
type Provider struct {
	provider.Notifier

	cfg     Config
	logger  *slog.Logger
	tokens  *tokenIssuer
	watcher *sessionfile.Watcher
	cancel  context.CancelFunc

	// opMu serializes state-changing operations.
	opMu sync.Mutex
}

var _ provider.Provider = (*Provider)(nil)

var validate = validator.New()

// New opens a local provider, restoring any persisted session.
func New(cfg Config) (*Provider, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("local provider: db is required")
	}
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("local provider: signing key is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	p := &Provider{
		cfg:    cfg,
		logger: cfg.Logger.With("provider", ID),
		tokens: &tokenIssuer{key: cfg.SigningKey, ttl: cfg.TokenTTL, now: cfg.Now},
	}

	if cfg.Session != nil {
		stored, err := cfg.Session.Load()
		if err != nil {
			p.logger.Warn("ignoring unreadable session file", "error", err)
		} else if user := p.restore(context.Background(), stored); user != nil {
			p.SetCurrent(user)
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

// SignInWithEmailAndPassword implements provider.Provider.
func (p *Provider) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, provider.NewError(provider.CodeMissingPassword, "")
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	acct, err := p.cfg.DB.AccountByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, provider.NewError(provider.CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return nil, provider.WrapError(provider.CodeInternalError, "account lookup failed", err)
	}
	if acct.Disabled {
		return nil, provider.NewError(provider.CodeUserDisabled, "The user account has been disabled by an administrator.")
	}

	now := p.cfg.Now()
	if !acct.LockedUntil.IsZero() && now.Before(acct.LockedUntil) {
		return nil, provider.NewError(provider.CodeTooManyRequests,
			"Access to this account has been temporarily disabled due to many failed login attempts.")
	}

	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		attempts, err := p.cfg.DB.RecordFailedAttempt(ctx, acct.UID, p.cfg.MaxFailedAttempts, now.Add(p.cfg.LockoutWindow))
		if err != nil {
			p.logger.Warn("failed to record failed attempt", "uid", acct.UID, "error", err)
		}
		p.logger.Info("wrong password", "uid", acct.UID, "attempts", attempts)
		return nil, provider.NewError(provider.CodeWrongPassword, "The password is invalid.")
	}

	if err := p.cfg.DB.ClearFailedAttempts(ctx, acct.UID); err != nil {
		p.logger.Warn("failed to clear failed attempts", "uid", acct.UID, "error", err)
	}

	user, err := p.issue(acct)
	if err != nil {
		return nil, err
	}
	p.commit(user)
	return user.Clone(), nil
}

// CreateUserWithEmailAndPassword implements provider.Provider. The new user
// is signed in.
func (p *Provider) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !p.cfg.AllowSignup {
		return nil, provider.NewError(provider.CodeOperationNotAllowed, "Password sign-up is disabled for this project.")
	}
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, provider.NewError(provider.CodeMissingPassword, "")
	}
	if len([]rune(password)) < minPasswordLength {
		return nil, provider.NewError(provider.CodeWeakPassword, "Password should be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cfg.BcryptCost)
	if err != nil {
		return nil, provider.WrapError(provider.CodeInternalError, "hash password", err)
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	acct := db.Account{
		UID:          uuid.NewString(),
		Email:        strings.ToLower(email),
		PasswordHash: string(hash),
	}
	if err := p.cfg.DB.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, db.ErrDuplicateEmail) {
			return nil, provider.NewError(provider.CodeEmailAlreadyInUse, "The email address is already in use by another account.")
		}
		return nil, provider.WrapError(provider.CodeInternalError, "create account", err)
	}
	p.logger.Info("account created", "uid", acct.UID)

	user, err := p.issue(&acct)
	if err != nil {
		return nil, err
	}
	p.commit(user)
	return user.Clone(), nil
}

// SignOut implements provider.Provider. It always succeeds locally.
func (p *Provider) SignOut(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()
	p.commit(nil)
	return nil
}

// SendPasswordResetEmail queues a reset code in the outbox table.
func (p *Provider) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if err := checkEmail(email); err != nil {
		return err
	}

	acct, err := p.cfg.DB.AccountByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return provider.NewError(provider.CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return provider.WrapError(provider.CodeInternalError, "account lookup failed", err)
	}

	now := p.cfg.Now()
	if err := p.cfg.DB.CreatePasswordReset(ctx, db.PasswordReset{
		UID:       acct.UID,
		Email:     acct.Email,
		Code:      uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(p.cfg.ResetTTL),
	}); err != nil {
		return provider.WrapError(provider.CodeInternalError, "queue password reset", err)
	}
	p.logger.Info("password reset queued", "uid", acct.UID)
	return nil
}

// ConfirmPasswordReset sets a new password using a code from the outbox.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	if len([]rune(newPassword)) < minPasswordLength {
		return provider.NewError(provider.CodeWeakPassword, "Password should be at least 6 characters")
	}
	reset, err := p.cfg.DB.ConsumePasswordReset(ctx, code, p.cfg.Now())
	if errors.Is(err, db.ErrNotFound) {
		return provider.NewError("auth/invalid-action-code", "The action code is invalid or has expired.")
	}
	if err != nil {
		return provider.WrapError(provider.CodeInternalError, "consume password reset", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cfg.BcryptCost)
	if err != nil {
		return provider.WrapError(provider.CodeInternalError, "hash password", err)
	}
	if err := p.cfg.DB.UpdatePasswordHash(ctx, reset.UID, string(hash)); err != nil {
		return provider.WrapError(provider.CodeInternalError, "update password", err)
	}
	return nil
}

// UpdateProfile implements provider.Provider. Like the hosted provider it
// does not emit a session notification.
func (p *Provider) UpdateProfile(ctx context.Context, update provider.ProfileUpdate) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.opMu.Lock()
	defer p.opMu.Unlock()

	current := p.CurrentUser()
	if current == nil {
		return nil, provider.NewError(provider.CodeNoCurrentUser, "No user is signed in.")
	}

	err := p.cfg.DB.UpdateAccountProfile(ctx, current.UID, update.DisplayName, update.PhotoURL)
	if errors.Is(err, db.ErrNotFound) {
		return nil, provider.NewError(provider.CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return nil, provider.WrapError(provider.CodeInternalError, "update profile", err)
	}

	if update.DisplayName != nil {
		current.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		current.PhotoURL = *update.PhotoURL
	}
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

func (p *Provider) issue(acct *db.Account) (*identity.Identity, error) {
	token, expires, err := p.tokens.issue(acct)
	if err != nil {
		return nil, provider.WrapError(provider.CodeInternalError, "issue token", err)
	}
	return &identity.Identity{
		UID:           acct.UID,
		Email:         acct.Email,
		DisplayName:   acct.DisplayName,
		PhotoURL:      acct.PhotoURL,
		EmailVerified: acct.EmailVerified,
		ProviderID:    "password",
		IDToken:       token,
		RefreshToken:  uuid.NewString(),
		ExpiresAt:     expires,
	}, nil
}

// commit persists user and notifies listeners.
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

// restore validates a persisted user against the accounts table and
// re-issues its token when expired. It returns nil when the stored session
// is no longer valid.
func (p *Provider) restore(ctx context.Context, stored *identity.Identity) *identity.Identity {
	if stored == nil {
		return nil
	}
	uid, err := p.tokens.verify(stored.IDToken)
	if err != nil || uid != stored.UID {
		p.logger.Info("discarding session with invalid token", "error", err)
		return nil
	}
	acct, err := p.cfg.DB.AccountByUID(ctx, uid)
	if err != nil || acct.Disabled {
		return nil
	}
	if !stored.TokenExpired(p.cfg.Now()) {
		user := stored.Clone()
		user.DisplayName = acct.DisplayName
		user.PhotoURL = acct.PhotoURL
		return user
	}
	user, err := p.issue(acct)
	if err != nil {
		return nil
	}
	p.persist(user)
	return user
}

func (p *Provider) startWatcher() error {
	w, err := sessionfile.NewWatcher(p.cfg.Session, sessionfile.WatcherConfig{
		DebounceInterval: p.cfg.WatchDebounce,
		Logger:           p.logger,
		OnChange: func(user *identity.Identity) {
			p.opMu.Lock()
			defer p.opMu.Unlock()
			p.Publish(p.restore(context.Background(), user))
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

func checkEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return provider.NewError(provider.CodeInvalidEmail, "The email address is badly formatted.")
	}
	return nil
}
