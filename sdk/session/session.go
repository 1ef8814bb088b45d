package session

import (
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Identity is the cached profile of the signed-in user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Session tracks whether the client is authenticated. It owns the credential
// store for lifecycle operations (establish on login, teardown on terminal
// failure) and caches the user identity between /auth/me calls.
type Session struct {
	store  Store
	logger *log.Logger

	authenticated atomic.Bool

	mu         sync.Mutex
	identity   *Identity
	onTeardown func()
}

// NewSession wraps the given store. If logger is nil the standard logrus
// logger is used.
func NewSession(store Store, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Session{store: store, logger: logger}
	if !store.Read().Empty() {
		s.authenticated.Store(true)
	}
	return s
}

// OnTeardown registers a hook invoked once per authenticated-to-anonymous
// transition. External collaborators (navigation, UI state) react here.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	s.onTeardown = fn
	s.mu.Unlock()
}

// Authenticated reports whether the client currently holds a session.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

// Identity returns a copy of the cached identity, or nil when none is cached.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// SetIdentity replaces the cached identity.
func (s *Session) SetIdentity(id Identity) {
	s.mu.Lock()
	s.identity = &id
	s.mu.Unlock()
}

// Establish stores a freshly issued credential pair and marks the session
// authenticated. Called by the login and registration flows.
func (s *Session) Establish(accessToken, refreshToken string) error {
	if err := s.store.Write(accessToken, refreshToken); err != nil {
		return fmt.Errorf("session: failed to store credentials: %w", err)
	}
	s.authenticated.Store(true)
	return nil
}

// Teardown clears the credential store, drops the cached identity, and marks
// the session unauthenticated. Safe to call repeatedly and concurrently;
// both the no-refresh-token path and the refresh failure path end here. It
// never navigates; collaborators observe the transition via OnTeardown.
func (s *Session) Teardown() {
	if err := s.store.Clear(); err != nil {
		s.logger.Errorf("session: failed to clear credential store: %v", err)
	}
	s.mu.Lock()
	s.identity = nil
	hook := s.onTeardown
	s.mu.Unlock()

	if s.authenticated.CompareAndSwap(true, false) && hook != nil {
		hook()
	}
}
