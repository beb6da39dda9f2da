package session

import (
	"context"
	"errors"
	"sync"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

// ErrReleased is returned by Next once the subscription has been released.
var ErrReleased = errors.New("session subscription released")

// Subscription is one screen's view of the session. Notifications are queued
// without bound, so a slow reader never blocks the provider or other screens
// and never misses a value.
type Subscription struct {
	observer *Observer
	id       uint64

	mu       sync.Mutex
	queue    []identity.Session
	latest   identity.Session
	released bool

	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscription(o *Observer, id uint64, initial identity.Session) *Subscription {
	return &Subscription{
		observer: o,
		id:       id,
		latest:   initial,
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *Subscription) push(sess identity.Session) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, sess)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Next blocks until the next queued Session is available, ctx is done, or the
// subscription is released.
func (s *Subscription) Next(ctx context.Context) (identity.Session, error) {
	for {
		s.mu.Lock()
		if s.released {
			s.mu.Unlock()
			return identity.Session{}, ErrReleased
		}
		if len(s.queue) > 0 {
			sess := s.queue[0]
			s.queue[0] = identity.Session{}
			s.queue = s.queue[1:]
			s.latest = sess
			s.mu.Unlock()
			return sess, nil
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
		case <-s.done:
		case <-ctx.Done():
			return identity.Session{}, ctx.Err()
		}
	}
}

// Latest returns the most recent Session taken from the queue, or the Session
// current at subscribe time if none has been taken yet.
func (s *Subscription) Latest() identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Pending returns the number of queued, unread notifications.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Released reports whether Release has been called.
func (s *Subscription) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Release detaches the subscription from its observer. It is safe to call
// more than once and never affects other subscriptions.
func (s *Subscription) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
		s.observer.remove(s.id)
	})
}
