// Package nav holds the named screen routes and a stack router.
package nav

import (
	"strings"
	"sync"
)

// Route names a screen.
type Route string

const (
	Home           Route = "home"
	Login          Route = "login"
	Signup         Route = "signup"
	ForgotPassword Route = "forgotpassword"
	Profile        Route = "profile"
	NotFound       Route = "not-found"
)

var known = []Route{Home, Login, Signup, ForgotPassword, Profile, NotFound}

// Routes returns every named route.
func Routes() []Route {
	return append([]Route(nil), known...)
}

// Parse resolves a route name. Leading slashes are ignored and unknown names
// resolve to NotFound.
func Parse(name string) Route {
	name = strings.ToLower(strings.Trim(strings.TrimSpace(name), "/"))
	if name == "" || name == "index" {
		return Home
	}
	r := Route(name)
	if r.Known() {
		return r
	}
	return NotFound
}

// Known reports whether r is one of the named routes.
func (r Route) Known() bool {
	for _, k := range known {
		if r == k {
			return true
		}
	}
	return false
}

func (r Route) String() string { return string(r) }

// Router is a navigation stack. The zero value is not usable; use NewRouter.
type Router struct {
	mu    sync.Mutex
	stack []Route
}

// NewRouter returns a router showing initial.
func NewRouter(initial Route) *Router {
	return &Router{stack: []Route{resolve(initial)}}
}

// Current returns the visible route.
func (r *Router) Current() Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stack[len(r.stack)-1]
}

// Depth returns the stack size.
func (r *Router) Depth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Stack returns a copy of the stack, bottom first.
func (r *Router) Stack() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.stack...)
}

// Push shows to on top of the current route and returns the resolved route.
func (r *Router) Push(to Route) Route {
	to = resolve(to)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = append(r.stack, to)
	return to
}

// Replace swaps the visible route for to.
func (r *Router) Replace(to Route) Route {
	to = resolve(to)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack[len(r.stack)-1] = to
	return to
}

// Reset discards the stack and shows to.
func (r *Router) Reset(to Route) Route {
	to = resolve(to)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = []Route{to}
	return to
}

// Navigate returns to to when it is already on the stack, dropping the
// routes above it, and pushes it otherwise.
func (r *Router) Navigate(to Route) Route {
	to = resolve(to)
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == to {
			r.stack = r.stack[:i+1]
			return to
		}
	}
	r.stack = append(r.stack, to)
	return to
}

// Back pops the visible route. It reports false at the root.
func (r *Router) Back() (Route, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 1 {
		return r.stack[0], false
	}
	r.stack = r.stack[:len(r.stack)-1]
	return r.stack[len(r.stack)-1], true
}

func resolve(r Route) Route {
	if r.Known() {
		return r
	}
	return Parse(string(r))
}
