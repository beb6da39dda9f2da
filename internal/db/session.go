package db

import (
	"sync"
	"time"
)

// SessionTracker measures how long each account stays signed in during one
// process lifetime. The duration is recorded on the sign_out event.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	now      func() time.Time
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		sessions: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Start marks uid as signed in. A repeated Start keeps the earlier time.
func (s *SessionTracker) Start(provider, uid string) {
	if s == nil || uid == "" {
		return
	}
	key := sessionKey(provider, uid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]time.Time)
	}
	if _, ok := s.sessions[key]; ok {
		return
	}
	s.sessions[key] = s.clock()
}

// End returns how long uid was signed in and forgets it.
func (s *SessionTracker) End(provider, uid string) time.Duration {
	if s == nil {
		return 0
	}
	key := sessionKey(provider, uid)

	s.mu.Lock()
	defer s.mu.Unlock()

	start, ok := s.sessions[key]
	if !ok {
		return 0
	}
	delete(s.sessions, key)

	now := s.clock()
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return now.Sub(start)
}

func (s *SessionTracker) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func sessionKey(provider, uid string) string {
	return provider + "/" + uid
}
