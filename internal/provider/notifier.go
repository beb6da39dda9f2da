package provider

import (
	"sync"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

// Notifier fans session changes out to registered listeners. Providers embed
// it to implement OnAuthStateChanged and CurrentUser.
//
// Deliveries are serialized: every listener sees publications in the order
// they were made. Listeners run on the publishing goroutine and must not call
// back into the Notifier.
type Notifier struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
	current   *identity.Identity
}

// OnAuthStateChanged registers fn and delivers the current user to it.
func (n *Notifier) OnAuthStateChanged(fn Listener) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]Listener)
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	current := n.current.Clone()
	n.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// Publish records user as current and delivers it to every listener.
// A nil user publishes a sign-out.
func (n *Notifier) Publish(user *identity.Identity) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	n.current = user.Clone()
	targets := make([]Listener, 0, len(n.listeners))
	for id := 0; id < n.nextID; id++ {
		if fn, ok := n.listeners[id]; ok {
			targets = append(targets, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range targets {
		fn(user.Clone())
	}
}

// SetCurrent replaces the current user without notifying listeners. Used for
// profile updates, which providers are not required to announce.
func (n *Notifier) SetCurrent(user *identity.Identity) {
	n.mu.Lock()
	n.current = user.Clone()
	n.mu.Unlock()
}

// CurrentUser returns a copy of the current user, or nil.
func (n *Notifier) CurrentUser() *identity.Identity {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current.Clone()
}

// ListenerCount returns the number of registered listeners.
func (n *Notifier) ListenerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}
