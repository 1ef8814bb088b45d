// Package session implements the authenticated request layer of the CrewDesk
// Go client: credential persistence, bearer/CSRF request decoration, and the
// coordinated refresh protocol that recovers from expired access tokens.
package session

import "sync"

// CredentialPair holds the access and refresh tokens of an authenticated
// session. Both fields are set together or empty together; a pair with only
// one populated field is treated as no session.
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether the pair carries no usable session.
func (p CredentialPair) Empty() bool {
	return p.AccessToken == "" || p.RefreshToken == ""
}

// Store persists the credential pair across client restarts.
//
// Read never fails: a missing or malformed backing record reads as an empty
// pair. Write replaces both tokens atomically; Clear removes both and is
// idempotent. Only login, the refresh coordinator, and session teardown
// write through a Store; request-handling code reads it via the Transport.
type Store interface {
	Read() CredentialPair
	Write(accessToken, refreshToken string) error
	Clear() error
}

// MemoryStore is an in-process Store. It is the default for clients that do
// not need credentials to survive a restart, and the fake used in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	pair CredentialPair
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns the last written pair.
func (s *MemoryStore) Read() CredentialPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pair.Empty() {
		return CredentialPair{}
	}
	return s.pair
}

// Write replaces both tokens.
func (s *MemoryStore) Write(accessToken, refreshToken string) error {
	s.mu.Lock()
	s.pair = CredentialPair{AccessToken: accessToken, RefreshToken: refreshToken}
	s.mu.Unlock()
	return nil
}

// Clear removes both tokens.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.pair = CredentialPair{}
	s.mu.Unlock()
	return nil
}
