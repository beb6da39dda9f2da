package cmd

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signup(t *testing.T, email, password string) {
	t.Helper()
	out, _, err := run(t, "", "signup", email, "--password", password)
	require.NoError(t, err)
	require.Contains(t, out, "Your account has been created!")
}

func TestSignupWhoamiLogoutLogin(t *testing.T) {
	setupHome(t)

	signup(t, "me@example.com", "secret1")

	out, _, err := run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "me@example.com")
	assert.Contains(t, out, "Display name:")
	assert.Contains(t, out, "  me\n")
	assert.Contains(t, out, "local")

	out, _, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	out, _, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "You are not signed in.")

	// Email as argument, password from stdin.
	out, _, err = run(t, "secret1\n", "login", "me@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as me")
}

func TestLoginPromptsForEmailAndPassword(t *testing.T) {
	setupHome(t)
	signup(t, "me@example.com", "secret1")

	out, stderr, err := run(t, "me@example.com\nsecret1\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as me")
	assert.Contains(t, stderr, "Email address:")
	assert.Contains(t, stderr, "Password:")
}

func TestLoginWrongPassword(t *testing.T) {
	setupHome(t)
	signup(t, "me@example.com", "secret1")

	_, _, err := run(t, "", "login", "me@example.com", "--password", "nope123")
	require.Error(t, err)
	assert.Equal(t, `Wrong password. Try again or choose "Forgot password".`, err.Error())
}

func TestLoginUnknownUser(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "", "login", "ghost@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No account uses this email")
}

func TestLoginValidation(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "", "login", "not-an-email", "--password", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid email")
	assert.Contains(t, err.Error(), "Password must be at least 6 characters")
}

func TestLoginSubmitAnywayDispatches(t *testing.T) {
	setupHome(t)
	t.Setenv("AUTHDECK_SUBMIT_POLICY", "submit-anyway")

	_, _, err := run(t, "", "login", "not-an-email", "--password", "secret1")
	require.Error(t, err)
	assert.Equal(t, "The email address is invalid. Please check it.", err.Error())
}

func TestSignupPasswordMismatch(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "secret1\nsecret2\n", "signup", "me@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Passwords do not match")
}

func TestSignupEmailInUse(t *testing.T) {
	setupHome(t)
	signup(t, "me@example.com", "secret1")

	_, _, err := run(t, "", "signup", "me@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Sign-up failed: "))
	assert.Contains(t, err.Error(), "already in use")
}

func TestSignupDisabled(t *testing.T) {
	setupHome(t)
	t.Setenv("AUTHDECK_LOCAL_ALLOW_SIGNUP", "false")

	_, _, err := run(t, "", "signup", "me@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Email sign-up is currently disabled")
}

func TestResetPasswordOutboxFlow(t *testing.T) {
	setupHome(t)
	signup(t, "me@example.com", "secret1")

	out, _, err := run(t, "", "reset-password", "me@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "A password reset email has been sent.")

	out, _, err = run(t, "", "reset-password", "me@example.com", "--outbox")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	code := strings.Fields(lines[1])[0]

	out, _, err = run(t, "", "reset-password", "--code", code, "--new-password", "n3wpass")
	require.NoError(t, err)
	assert.Contains(t, out, "Your password has been reset.")

	_, _, err = run(t, "", "login", "me@example.com", "--password", "n3wpass")
	require.NoError(t, err)

	// Codes are single use.
	_, _, err = run(t, "", "reset-password", "--code", code, "--new-password", "other12")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth/invalid-action-code")
}

func TestResetPasswordOutboxEmpty(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "reset-password", "nobody@example.com", "--outbox")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending password reset codes.")
}

func TestWhoamiJSON(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "whoami", "--json")
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)

	signup(t, "me@example.com", "secret1")
	out, _, err = run(t, "", "whoami", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"email": "me@example.com"`)
	assert.NotContains(t, out, "id_token")
	assert.NotContains(t, out, "refresh_token")
}

func TestWhoamiReloadNeedsFirebase(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "", "whoami", "--reload")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firebase")
}

func TestProfileSetName(t *testing.T) {
	setupHome(t)

	_, _, err := run(t, "", "profile", "set-name", "Someone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not update the display name!")
	assert.Contains(t, err.Error(), "You need to sign in first.")

	signup(t, "me@example.com", "secret1")

	_, _, err = run(t, "", "profile", "set-name", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please enter a display name")

	out, _, err := run(t, "", "profile", "set-name", "Nguyen", "Van", "A")
	require.NoError(t, err)
	assert.Contains(t, out, "Display name updated!")

	out, _, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Nguyen Van A")
}

func TestProfileSetPhoto(t *testing.T) {
	setupHome(t)
	library := t.TempDir()
	t.Setenv("AUTHDECK_AVATAR_LIBRARY_DIR", library)

	img := filepath.Join(library, "me.png")
	writePNG(t, img)
	notImage := filepath.Join(library, "notes.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("hello"), 0600))

	signup(t, "me@example.com", "secret1")

	_, _, err := run(t, "", "profile", "set-photo", notImage)
	require.Error(t, err)

	outside := filepath.Join(t.TempDir(), "x.png")
	writePNG(t, outside)
	_, _, err = run(t, "", "profile", "set-photo", outside)
	require.Error(t, err)

	out, _, err := run(t, "", "profile", "set-photo", img)
	require.NoError(t, err)
	assert.Contains(t, out, "Avatar updated!")

	out, _, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "file://")
	assert.Contains(t, out, "me.png")
}

func TestWatchPrintsCurrentSession(t *testing.T) {
	setupHome(t)
	signup(t, "me@example.com", "secret1")

	out, _, err := run(t, "", "watch", "--count", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "me@example.com")
}

func TestHistory(t *testing.T) {
	setupHome(t)

	out, _, err := run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No events recorded.")

	signup(t, "me@example.com", "secret1")
	_, _, err = run(t, "", "logout")
	require.NoError(t, err)
	_, _, err = run(t, "", "login", "me@example.com", "--password", "wrong12")
	require.Error(t, err)

	out, _, err = run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "sign_up")
	assert.Contains(t, out, "sign_out")
	assert.Contains(t, out, "wrong-password")

	out, _, err = run(t, "", "history", "--type", "sign_up")
	require.NoError(t, err)
	assert.Contains(t, out, "sign_up")
	assert.NotContains(t, out, "sign_out")

	_, _, err = run(t, "", "history", "--stats")
	require.Error(t, err)

	out, _, err = run(t, "", "history", "--stats", "--email", "me@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Errors:")
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	require.NoError(t, png.Encode(f, img))
}
