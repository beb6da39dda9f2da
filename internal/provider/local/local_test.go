package local

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dicklesworthstone/authdeck/internal/db"
	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
	"github.com/Dicklesworthstone/authdeck/internal/sessionfile"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	dir   string
	db    *db.DB
	clock *clock
	p     *Provider
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	dir := t.TempDir()
	d, err := db.OpenAt(filepath.Join(dir, "authdeck.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	c := &clock{now: time.Now().UTC().Truncate(time.Second)}
	cfg := Config{
		DB:                d,
		SigningKey:        []byte("test-signing-key"),
		AllowSignup:       true,
		MaxFailedAttempts: 3,
		LockoutWindow:     5 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
		Session:           sessionfile.NewStore(filepath.Join(dir, sessionfile.FileName), ID),
		Now:               c.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return &fixture{dir: dir, db: d, clock: c, p: p}
}

func codeOf(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return provider.CodeOf(err)
}

func TestNew_RequiresDBAndKey(t *testing.T) {
	_, err := New(Config{SigningKey: []byte("k")})
	require.Error(t, err)

	d, err := db.OpenAt(filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	defer d.Close()
	_, err = New(Config{DB: d})
	require.Error(t, err)
}

func TestNew_UnwatchableSessionDir(t *testing.T) {
	dir := t.TempDir()
	d, err := db.OpenAt(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	defer d.Close()

	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	_, err = New(Config{
		DB:           d,
		SigningKey:   []byte("k"),
		Session:      sessionfile.NewStore(filepath.Join(blocker, "sub", sessionfile.FileName), ID),
		WatchSession: true,
	})
	require.Error(t, err)
}

func TestCreateUser_SignsInAndNotifies(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var seen []*identity.Identity
	unsub := f.p.OnAuthStateChanged(func(u *identity.Identity) { seen = append(seen, u) })
	defer unsub()

	user, err := f.p.CreateUserWithEmailAndPassword(ctx, "A@b.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
	assert.NotEmpty(t, user.UID)
	assert.NotEmpty(t, user.IDToken)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0], "initial delivery is signed out")
	require.NotNil(t, seen[1])
	assert.Equal(t, user.UID, seen[1].UID)

	claims, err := identity.ExtractFromJWT(user.IDToken)
	require.NoError(t, err)
	assert.Equal(t, user.UID, claims.UID)
	assert.Equal(t, "password", claims.ProviderID)
}

func TestCreateUser_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"duplicate", "A@B.com", "secret1", provider.CodeEmailAlreadyInUse},
		{"bad email", "nope", "secret1", provider.CodeInvalidEmail},
		{"empty password", "c@b.com", "", provider.CodeMissingPassword},
		{"weak password", "c@b.com", "12345", provider.CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.p.CreateUserWithEmailAndPassword(ctx, tt.email, tt.password)
			assert.Equal(t, tt.code, codeOf(t, err))
		})
	}
}

func TestCreateUser_SignupDisabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.AllowSignup = false })
	_, err := f.p.CreateUserWithEmailAndPassword(context.Background(), "a@b.com", "secret1")
	assert.Equal(t, provider.CodeOperationNotAllowed, codeOf(t, err))
}

func TestSignIn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	created, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.p.SignOut(ctx))
	assert.Nil(t, f.p.CurrentUser())

	_, err = f.p.SignInWithEmailAndPassword(ctx, "x@b.com", "secret1")
	assert.Equal(t, provider.CodeUserNotFound, codeOf(t, err))

	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "")
	assert.Equal(t, provider.CodeMissingPassword, codeOf(t, err))

	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@", "secret1")
	assert.Equal(t, provider.CodeInvalidEmail, codeOf(t, err))

	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "wrong!!")
	assert.Equal(t, provider.CodeWrongPassword, codeOf(t, err))
	assert.Nil(t, f.p.CurrentUser())

	user, err := f.p.SignInWithEmailAndPassword(ctx, "A@B.COM", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, user.UID)
	assert.Equal(t, created.UID, f.p.CurrentUser().UID)
}

func TestSignIn_Lockout(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "bad-password")
		assert.Equal(t, provider.CodeWrongPassword, codeOf(t, err))
	}

	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "secret1")
	assert.Equal(t, provider.CodeTooManyRequests, codeOf(t, err), "locked even with the right password")

	f.clock.Advance(6 * time.Minute)
	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
}

func TestSignIn_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, f.db.SetAccountDisabled(ctx, "a@b.com", true))

	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "secret1")
	assert.Equal(t, provider.CodeUserDisabled, codeOf(t, err))
}

func TestSignIn_CanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestUpdateProfile_NoNotification(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	name := "An"
	_, err := f.p.UpdateProfile(ctx, provider.ProfileUpdate{DisplayName: &name})
	assert.Equal(t, provider.CodeNoCurrentUser, codeOf(t, err))

	_, err = f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	notifications := 0
	unsub := f.p.OnAuthStateChanged(func(*identity.Identity) { notifications++ })
	defer unsub()

	user, err := f.p.UpdateProfile(ctx, provider.ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "An", user.DisplayName)
	assert.Equal(t, "An", f.p.CurrentUser().DisplayName)
	assert.Equal(t, 1, notifications, "only the registration delivery")

	acct, err := f.db.AccountByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "An", acct.DisplayName)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.p.SendPasswordResetEmail(ctx, "x@b.com")
	assert.Equal(t, provider.CodeUserNotFound, codeOf(t, err))
	err = f.p.SendPasswordResetEmail(ctx, "x@")
	assert.Equal(t, provider.CodeInvalidEmail, codeOf(t, err))

	_, err = f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)
	before := f.p.CurrentUser()

	require.NoError(t, f.p.SendPasswordResetEmail(ctx, "a@b.com"))
	assert.Equal(t, before.UID, f.p.CurrentUser().UID, "reset does not touch the session")

	resets, err := f.db.PasswordResets(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, resets, 1)

	require.Error(t, f.p.ConfirmPasswordReset(ctx, resets[0].Code, "123"))
	require.NoError(t, f.p.ConfirmPasswordReset(ctx, resets[0].Code, "newsecret"))
	err = f.p.ConfirmPasswordReset(ctx, resets[0].Code, "newsecret")
	assert.Equal(t, "auth/invalid-action-code", codeOf(t, err))

	require.NoError(t, f.p.SignOut(ctx))
	_, err = f.p.SignInWithEmailAndPassword(ctx, "a@b.com", "newsecret")
	require.NoError(t, err)
}

func TestSessionRestoredOnRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	user, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	again, err := New(f.p.cfg)
	require.NoError(t, err)
	defer again.Close()
	require.NotNil(t, again.CurrentUser())
	assert.Equal(t, user.UID, again.CurrentUser().UID)

	require.NoError(t, again.SignOut(ctx))
	third, err := New(f.p.cfg)
	require.NoError(t, err)
	defer third.Close()
	assert.Nil(t, third.CurrentUser())
}

func TestSessionRestoreRejectsForeignToken(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	cfg := f.p.cfg
	cfg.SigningKey = []byte("another-key")
	other, err := New(cfg)
	require.NoError(t, err)
	defer other.Close()
	assert.Nil(t, other.CurrentUser())
}

func TestSessionRestoreReissuesExpiredToken(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.TokenTTL = time.Minute })
	ctx := context.Background()
	user, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Minute)
	again, err := New(f.p.cfg)
	require.NoError(t, err)
	defer again.Close()

	restored := again.CurrentUser()
	require.NotNil(t, restored)
	assert.Equal(t, user.UID, restored.UID)
	assert.NotEqual(t, user.IDToken, restored.IDToken)
	assert.False(t, restored.TokenExpired(f.clock.Now()))
}

func TestWatchSession_ExternalSignOut(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.p.CreateUserWithEmailAndPassword(ctx, "a@b.com", "secret1")
	require.NoError(t, err)

	cfg := f.p.cfg
	cfg.Session = sessionfile.NewStore(filepath.Join(f.dir, sessionfile.FileName), ID)
	cfg.WatchSession = true
	watching, err := New(cfg)
	require.NoError(t, err)
	defer watching.Close()
	require.NotNil(t, watching.CurrentUser())

	signedOut := make(chan struct{}, 1)
	unsub := watching.OnAuthStateChanged(func(u *identity.Identity) {
		if u == nil {
			select {
			case signedOut <- struct{}{}:
			default:
			}
		}
	})
	defer unsub()

	require.NoError(t, f.p.SignOut(ctx))

	select {
	case <-signedOut:
	case <-time.After(3 * time.Second):
		t.Fatal("external sign-out not propagated")
	}
	assert.Nil(t, watching.CurrentUser())
}
