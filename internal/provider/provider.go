// Package provider defines the contract between authdeck and an external
// identity provider, plus the error shape every provider reports.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

// Error codes reported by providers. The set mirrors the Firebase Auth client
// SDK so screens written against one provider work against the others.
const (
	CodeInvalidEmail        = "auth/invalid-email"
	CodeUserNotFound        = "auth/user-not-found"
	CodeWrongPassword       = "auth/wrong-password"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeNetworkRequestFail  = "auth/network-request-failed"
	CodeInternalError       = "auth/internal-error"
	CodeMissingPassword     = "auth/missing-password"
	CodeEmailAlreadyInUse   = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeOperationNotAllowed = "auth/operation-not-allowed"

	// Codes outside the mapped taxonomy. Screens show them verbatim.
	CodeUserDisabled        = "auth/user-disabled"
	CodeUserTokenExpired    = "auth/user-token-expired"
	CodeRequiresRecentLogin = "auth/requires-recent-login"
	CodeInvalidAPIKey       = "auth/invalid-api-key"
	CodeNoCurrentUser       = "auth/no-current-user"
)

// Error is the {code, message} failure shape returned by provider operations.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil provider error>"
	}
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is a provider error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if e != nil && errors.As(target, &t) && t != nil {
		return t.Code == e.Code
	}
	return false
}

// NewError creates a provider error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a provider error around an underlying cause.
func WrapError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the provider code carried by err, or "" if err is not a
// provider error.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Code
	}
	return ""
}

// ProfileUpdate carries the profile fields to change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// Listener receives the current user on every session change. A nil user
// means signed out.
type Listener func(user *identity.Identity)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

// Provider is an external identity provider's client surface.
//
// Implementations notify listeners on sign-in, sign-up and sign-out. Profile
// updates are not guaranteed to produce a notification; callers that need
// fresh profile data must apply it themselves.
type Provider interface {
	// ID returns the provider identifier (e.g. "firebase", "local").
	ID() string

	// OnAuthStateChanged registers fn and immediately delivers the current
	// user to it. Subsequent session changes are delivered in order.
	OnAuthStateChanged(fn Listener) Unsubscribe

	// CurrentUser returns the signed-in user, or nil.
	CurrentUser() *identity.Identity

	SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error)
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordResetEmail(ctx context.Context, email string) error

	// UpdateProfile changes profile fields of the signed-in user and returns
	// the updated identity.
	UpdateProfile(ctx context.Context, update ProfileUpdate) (*identity.Identity, error)

	// Close releases background resources (watchers, connections).
	Close() error
}

// Factory builds a provider on demand.
type Factory func() (Provider, error)

// Registry holds provider factories by ID.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a provider factory to the registry.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
}

// Open builds the provider registered under id.
func (r *Registry) Open(id string) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", id)
	}
	p, err := f()
	if err != nil {
		return nil, fmt.Errorf("open provider %s: %w", id, err)
	}
	return p, nil
}

// IDs returns the registered provider IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.factories))
	for id := range r.factories {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}
