// Package identity holds the client-side view of an authenticated user and the
// session state derived from it.
package identity

import (
	"strings"
	"time"
)

// Identity is the authenticated user's attributes as reported by the provider.
// The provider owns these values; clients only ever hold a cached copy.
type Identity struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	PhotoURL      string    `json:"photo_url,omitempty"`
	EmailVerified bool      `json:"email_verified,omitempty"`
	ProviderID    string    `json:"provider_id,omitempty"`
	IDToken       string    `json:"id_token,omitempty"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// Clone returns a copy that can be handed to a screen without aliasing.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// Label returns the best human-readable name for the identity.
func (i *Identity) Label() string {
	if i == nil {
		return ""
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	if i.Email != "" {
		return i.Email
	}
	return i.UID
}

// TokenExpired reports whether the cached ID token is past its expiry.
// Identities without a known expiry never expire locally.
func (i *Identity) TokenExpired(now time.Time) bool {
	if i == nil || i.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(i.ExpiresAt)
}

// DerivedDisplayName returns the default display name for a new account: the
// local part of the email address.
func DerivedDisplayName(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}

// State is the kind of a Session.
type State int

const (
	// StateAnonymous means no user is signed in.
	StateAnonymous State = iota
	// StateAuthenticated means a user is signed in.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the authentication state of the client: either Anonymous or
// Authenticated with an Identity. Revision orders sessions produced by the
// same observer; it is zero for sessions that never went through one.
type Session struct {
	Revision uint64
	user     *Identity
}

// Anonymous returns a session with no signed-in user.
func Anonymous() Session {
	return Session{}
}

// Authenticated returns a session for the given identity. A nil identity
// yields an anonymous session.
func Authenticated(user *Identity) Session {
	return Session{user: user.Clone()}
}

// FromUser is an alias for Authenticated that reads better at provider
// notification sites, where nil means "signed out".
func FromUser(user *Identity) Session {
	return Authenticated(user)
}

// State returns whether the session is anonymous or authenticated.
func (s Session) State() State {
	if s.user == nil {
		return StateAnonymous
	}
	return StateAuthenticated
}

// IsAuthenticated reports whether a user is signed in.
func (s Session) IsAuthenticated() bool {
	return s.user != nil
}

// User returns a copy of the signed-in identity, or nil when anonymous.
func (s Session) User() *Identity {
	return s.user.Clone()
}

// UID returns the signed-in user's id, or "" when anonymous.
func (s Session) UID() string {
	if s.user == nil {
		return ""
	}
	return s.user.UID
}

// SameUser reports whether two sessions refer to the same account with the
// same visible attributes. Token fields are ignored.
func (s Session) SameUser(other Session) bool {
	if s.user == nil || other.user == nil {
		return s.user == nil && other.user == nil
	}
	a, b := s.user, other.user
	return a.UID == b.UID &&
		a.Email == b.Email &&
		a.DisplayName == b.DisplayName &&
		a.PhotoURL == b.PhotoURL &&
		a.EmailVerified == b.EmailVerified
}

// WithRevision returns a copy of the session stamped with rev.
func (s Session) WithRevision(rev uint64) Session {
	s.Revision = rev
	return s
}

func (s Session) String() string {
	if s.user == nil {
		return "anonymous"
	}
	return "authenticated(" + s.user.UID + ")"
}
