// Package providertest provides an in-memory provider for tests.
package providertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
)

// Op names used for error injection and call counting.
const (
	OpSignIn        = "sign_in"
	OpCreateUser    = "create_user"
	OpSignOut       = "sign_out"
	OpPasswordReset = "password_reset"
	OpUpdateProfile = "update_profile"
)

type account struct {
	password string
	user     identity.Identity
}

// Fake is an in-memory provider.Provider. The zero value is not usable; use New.
type Fake struct {
	provider.Notifier

	mu       sync.Mutex
	accounts map[string]*account // by lowercased email
	failures map[string]error
	calls    map[string]int
	resets   []string
	nextUID  int

	// PublishProfileUpdates makes UpdateProfile emit a session notification.
	PublishProfileUpdates bool

	// Block, when set, is waited on by every operation before it runs.
	Block chan struct{}
}

var _ provider.Provider = (*Fake)(nil)

// New returns an empty fake provider.
func New() *Fake {
	return &Fake{
		accounts: make(map[string]*account),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// ID implements provider.Provider.
func (f *Fake) ID() string { return "fake" }

// AddUser seeds an account.
func (f *Fake) AddUser(email, password, displayName string) *identity.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextUID++
	acct := &account{
		password: password,
		user: identity.Identity{
			UID:         fmt.Sprintf("uid-%d", f.nextUID),
			Email:       email,
			DisplayName: displayName,
		},
	}
	f.accounts[strings.ToLower(email)] = acct
	return acct.user.Clone()
}

// FailNext makes the next call of op fail with err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Resets returns the emails that password resets were sent to.
func (f *Fake) Resets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.resets...)
}

func (f *Fake) begin(ctx context.Context, op string) error {
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err, ok := f.failures[op]; ok {
		delete(f.failures, op)
		return err
	}
	return nil
}

// SignInWithEmailAndPassword implements provider.Provider.
func (f *Fake) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := f.begin(ctx, OpSignIn); err != nil {
		return nil, err
	}
	f.mu.Lock()
	acct, ok := f.accounts[strings.ToLower(email)]
	f.mu.Unlock()
	if !ok {
		return nil, provider.NewError(provider.CodeUserNotFound, "no user for "+email)
	}
	if password == "" {
		return nil, provider.NewError(provider.CodeMissingPassword, "password is empty")
	}
	if acct.password != password {
		return nil, provider.NewError(provider.CodeWrongPassword, "wrong password")
	}
	user := acct.user.Clone()
	f.Publish(user)
	return user, nil
}

// CreateUserWithEmailAndPassword implements provider.Provider.
func (f *Fake) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := f.begin(ctx, OpCreateUser); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if _, exists := f.accounts[strings.ToLower(email)]; exists {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeEmailAlreadyInUse, "email exists")
	}
	f.mu.Unlock()
	if len(password) < 6 {
		return nil, provider.NewError(provider.CodeWeakPassword, "password too short")
	}
	user := f.AddUser(email, password, "")
	f.Publish(user)
	return user, nil
}

// SignOut implements provider.Provider.
func (f *Fake) SignOut(ctx context.Context) error {
	if err := f.begin(ctx, OpSignOut); err != nil {
		return err
	}
	f.Publish(nil)
	return nil
}

// SendPasswordResetEmail implements provider.Provider.
func (f *Fake) SendPasswordResetEmail(ctx context.Context, email string) error {
	if err := f.begin(ctx, OpPasswordReset); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[strings.ToLower(email)]; !ok {
		return provider.NewError(provider.CodeUserNotFound, "no user for "+email)
	}
	f.resets = append(f.resets, email)
	return nil
}

// UpdateProfile implements provider.Provider.
func (f *Fake) UpdateProfile(ctx context.Context, update provider.ProfileUpdate) (*identity.Identity, error) {
	if err := f.begin(ctx, OpUpdateProfile); err != nil {
		return nil, err
	}
	current := f.CurrentUser()
	if current == nil {
		return nil, provider.NewError(provider.CodeNoCurrentUser, "not signed in")
	}

	f.mu.Lock()
	acct, ok := f.accounts[strings.ToLower(current.Email)]
	if !ok {
		f.mu.Unlock()
		return nil, provider.NewError(provider.CodeUserNotFound, "user vanished")
	}
	if update.DisplayName != nil {
		acct.user.DisplayName = *update.DisplayName
	}
	if update.PhotoURL != nil {
		acct.user.PhotoURL = *update.PhotoURL
	}
	user := acct.user.Clone()
	f.mu.Unlock()

	if f.PublishProfileUpdates {
		f.Publish(user)
	} else {
		f.SetCurrent(user)
	}
	return user, nil
}

// Close implements provider.Provider.
func (f *Fake) Close() error { return nil }
