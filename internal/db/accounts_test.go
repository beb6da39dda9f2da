package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccounts_CreateAndLookup(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.CreateAccount(ctx, Account{UID: "u1", Email: "A@B.com", PasswordHash: "h"}))
	require.ErrorIs(t, d.CreateAccount(ctx, Account{UID: "u2", Email: "a@b.com", PasswordHash: "h"}), ErrDuplicateEmail)

	a, err := d.AccountByEmail(ctx, "a@B.COM")
	require.NoError(t, err)
	assert.Equal(t, "u1", a.UID)
	assert.Equal(t, "a@b.com", a.Email)
	assert.False(t, a.CreatedAt.IsZero())

	_, err = d.AccountByUID(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAccounts_UpdateProfile(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.CreateAccount(ctx, Account{UID: "u1", Email: "a@b.com", PasswordHash: "h"}))

	name := "An"
	require.NoError(t, d.UpdateAccountProfile(ctx, "u1", &name, nil))
	photo := "file:///tmp/me.png"
	require.NoError(t, d.UpdateAccountProfile(ctx, "u1", nil, &photo))

	a, err := d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "An", a.DisplayName)
	assert.Equal(t, photo, a.PhotoURL)

	require.ErrorIs(t, d.UpdateAccountProfile(ctx, "nope", &name, nil), ErrNotFound)
}

func TestAccounts_FailedAttemptsLock(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.CreateAccount(ctx, Account{UID: "u1", Email: "a@b.com", PasswordHash: "h"}))

	lockUntil := time.Now().Add(time.Minute).UTC().Truncate(time.Second)
	for i := 1; i <= 2; i++ {
		n, err := d.RecordFailedAttempt(ctx, "u1", 3, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	a, err := d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.LockedUntil.IsZero())

	n, err := d.RecordFailedAttempt(ctx, "u1", 3, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	a, err = d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.LockedUntil.Equal(lockUntil), "locked until %v", a.LockedUntil)
	assert.Equal(t, 0, a.FailedAttempts)

	require.NoError(t, d.ClearFailedAttempts(ctx, "u1"))
	a, err = d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.LockedUntil.IsZero())
}

func TestAccounts_PasswordResetOutbox(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.CreateAccount(ctx, Account{UID: "u1", Email: "a@b.com", PasswordHash: "h"}))

	now := time.Now().UTC()
	require.NoError(t, d.CreatePasswordReset(ctx, PasswordReset{
		UID: "u1", Email: "a@b.com", Code: "code-1", ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, d.CreatePasswordReset(ctx, PasswordReset{
		UID: "u1", Email: "a@b.com", Code: "code-2", ExpiresAt: now.Add(-time.Hour),
	}))

	resets, err := d.PasswordResets(ctx, "A@b.com")
	require.NoError(t, err)
	require.Len(t, resets, 2)
	assert.Equal(t, "code-2", resets[0].Code)

	r, err := d.ConsumePasswordReset(ctx, "code-1", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", r.UID)

	_, err = d.ConsumePasswordReset(ctx, "code-1", now)
	require.ErrorIs(t, err, ErrNotFound, "codes are single use")

	_, err = d.ConsumePasswordReset(ctx, "code-2", now)
	require.ErrorIs(t, err, ErrNotFound, "expired")

	require.NoError(t, d.UpdatePasswordHash(ctx, "u1", "h2"))
	a, err := d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h2", a.PasswordHash)
}

func TestAccounts_Disable(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, d.CreateAccount(ctx, Account{UID: "u1", Email: "a@b.com", PasswordHash: "h"}))

	require.NoError(t, d.SetAccountDisabled(ctx, "a@b.com", true))
	a, err := d.AccountByUID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, a.Disabled)

	require.ErrorIs(t, d.SetAccountDisabled(ctx, "x@b.com", true), ErrNotFound)
}
