// Package sessionfile persists the signed-in user between runs and watches
// the session file for changes made by other authdeck processes.
package sessionfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

// FileName is the base name of the session file.
const FileName = "session.json"

const formatVersion = 1

// absentHash stands in for the content hash of a missing file.
const absentHash = "absent"

type document struct {
	Version   int                `json:"version"`
	Provider  string             `json:"provider"`
	User      *identity.Identity `json:"user"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Store reads and writes one session file.
type Store struct {
	path     string
	provider string

	mu       sync.Mutex
	lastHash string
}

// NewStore returns a store for path scoped to one provider. Sessions saved
// by a different provider are treated as signed out.
func NewStore(path, provider string) *Store {
	return &Store{path: path, provider: provider}
}

// Path returns the session file path.
func (s *Store) Path() string { return s.path }

// Load returns the persisted user, or nil when nobody is signed in.
func (s *Store) Load() (*identity.Identity, error) {
	user, hash, err := s.read()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.lastHash = hash
	s.mu.Unlock()
	return user, nil
}

// Save persists user atomically. A nil user removes the file.
func (s *Store) Save(user *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user == nil {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove session file: %w", err)
		}
		s.lastHash = absentHash
		return nil
	}

	data, err := json.MarshalIndent(document{
		Version:   formatVersion,
		Provider:  s.provider,
		User:      user,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename session: %w", err)
	}

	s.lastHash = hashOf(data)
	return nil
}

// refresh re-reads the file and reports whether it differs from what this
// store last wrote or read.
func (s *Store) refresh() (*identity.Identity, bool, error) {
	user, hash, err := s.read()
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		return nil, false, nil
	}
	s.lastHash = hash
	return user, true, nil
}

func (s *Store) read() (*identity.Identity, string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, absentHash, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read session file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", fmt.Errorf("parse session file: %w", err)
	}
	if doc.Provider != "" && doc.Provider != s.provider {
		return nil, hashOf(data), nil
	}
	return doc.User, hashOf(data), nil
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
