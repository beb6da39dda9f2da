package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := map[string]Route{
		"":                Home,
		"/":               Home,
		"index":           Home,
		"/login":          Login,
		"Signup":          Signup,
		"forgotpassword":  ForgotPassword,
		"/profile/":       Profile,
		"not-found":       NotFound,
		"settings":        NotFound,
		"forgot-password": NotFound,
	}
	for in, want := range tests {
		assert.Equal(t, want, Parse(in), "Parse(%q)", in)
	}
}

func TestRouter(t *testing.T) {
	r := NewRouter(Home)
	assert.Equal(t, Home, r.Current())

	_, ok := r.Back()
	assert.False(t, ok, "cannot go back from root")

	r.Push(Login)
	r.Push(ForgotPassword)
	assert.Equal(t, []Route{Home, Login, ForgotPassword}, r.Stack())

	prev, ok := r.Back()
	assert.True(t, ok)
	assert.Equal(t, Login, prev)

	r.Replace(Signup)
	assert.Equal(t, []Route{Home, Signup}, r.Stack())

	assert.Equal(t, NotFound, r.Push(Route("nowhere")))
	assert.Equal(t, 3, r.Depth())

	r.Reset(Home)
	assert.Equal(t, []Route{Home}, r.Stack())
}

func TestNewRouterUnknownInitial(t *testing.T) {
	assert.Equal(t, NotFound, NewRouter(Route("bogus")).Current())
}

func TestRouterNavigate(t *testing.T) {
	r := NewRouter(Home)
	r.Push(Login)
	r.Push(Signup)

	assert.Equal(t, Login, r.Navigate(Login))
	assert.Equal(t, []Route{Home, Login}, r.Stack())

	assert.Equal(t, ForgotPassword, r.Navigate(ForgotPassword))
	assert.Equal(t, []Route{Home, Login, ForgotPassword}, r.Stack())

	r.Navigate("bogus")
	assert.Equal(t, NotFound, r.Current())
}
