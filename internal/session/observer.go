// Package session propagates provider-driven authentication state to any
// number of independent screens.
//
// An Observer holds exactly one listener on the provider's session channel and
// keeps the single current Session for the running client. Screens do not read
// the provider directly; each one takes a Subscription when it becomes visible
// and releases it when it goes away. Every notification is fanned out to every
// live subscription in the same order, so all screens converge on the same
// Session after one propagation cycle.
package session

import (
	"log/slog"
	"sync"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
)

// Options configures an Observer.
type Options struct {
	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Observer tracks the current Session and fans changes out to subscriptions.
type Observer struct {
	provider provider.Provider
	logger   *slog.Logger

	// lifeMu serializes Start and Stop; handle never takes it.
	lifeMu sync.Mutex

	mu          sync.Mutex
	current     identity.Session
	revision    uint64
	subs        map[uint64]*Subscription
	nextSubID   uint64
	started     bool
	unsubscribe provider.Unsubscribe
}

// NewObserver creates an observer for p. Call Start to begin receiving
// provider notifications; until the first one arrives the session is
// Anonymous.
func NewObserver(p provider.Provider, opts Options) *Observer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Observer{
		provider: p,
		logger:   opts.Logger,
		current:  identity.Anonymous(),
		subs:     make(map[uint64]*Subscription),
	}
}

// Start registers the observer's listener with the provider. Calling Start on
// a running observer does nothing, so at most one listener is ever registered.
func (o *Observer) Start() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	o.mu.Lock()
	started := o.started
	o.mu.Unlock()
	if started {
		return
	}

	// Providers deliver the current user synchronously on registration, which
	// re-enters handle; o.mu must not be held here.
	unsub := o.provider.OnAuthStateChanged(o.handle)

	o.mu.Lock()
	o.started = true
	o.unsubscribe = unsub
	o.mu.Unlock()
	o.logger.Debug("session observer started", "provider", o.provider.ID())
}

// Stop removes the provider listener. Subscriptions stay open but receive no
// further notifications. Stop is idempotent.
func (o *Observer) Stop() {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()

	o.mu.Lock()
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.started = false
	o.mu.Unlock()

	if unsub != nil {
		unsub()
		o.logger.Debug("session observer stopped", "provider", o.provider.ID())
	}
}

// Current returns the current Session.
func (o *Observer) Current() identity.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Subscribe opens a subscription. Its Latest value starts at the current
// Session; every later change is queued to it until Release.
func (o *Observer) Subscribe() *Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSubID
	o.nextSubID++
	sub := newSubscription(o, id, o.current)
	o.subs[id] = sub
	return sub
}

// SubscriberCount returns the number of live subscriptions.
func (o *Observer) SubscriberCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// ApplyLocal mutates the cached identity of the current session and broadcasts
// the result as if the provider had reported it. It returns false, without
// broadcasting, when nobody is signed in.
func (o *Observer) ApplyLocal(mutate func(user *identity.Identity)) (identity.Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	user := o.current.User()
	if user == nil {
		return o.current, false
	}
	mutate(user)
	o.broadcastLocked(identity.Authenticated(user))
	o.logger.Debug("session updated locally", "uid", user.UID, "revision", o.revision)
	return o.current, true
}

// ClearLocal broadcasts Anonymous when the cached session is authenticated.
// Used when the provider failed to sign out but the client must not keep
// showing a signed-in user.
func (o *Observer) ClearLocal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.current.IsAuthenticated() {
		return false
	}
	o.broadcastLocked(identity.Anonymous())
	o.logger.Debug("session cleared locally", "revision", o.revision)
	return true
}

func (o *Observer) handle(user *identity.Identity) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.broadcastLocked(identity.FromUser(user))
	o.logger.Debug("session notification",
		"state", o.current.State().String(),
		"uid", o.current.UID(),
		"revision", o.revision,
		"subscribers", len(o.subs))
}

// broadcastLocked stamps s with the next revision, stores it as current and
// queues it to every subscription. Queueing happens under o.mu, so all
// subscriptions see the same order.
func (o *Observer) broadcastLocked(s identity.Session) {
	o.revision++
	o.current = s.WithRevision(o.revision)
	for _, sub := range o.subs {
		sub.push(o.current)
	}
}

func (o *Observer) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.subs, id)
}
