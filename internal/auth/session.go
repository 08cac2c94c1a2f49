package auth

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownSession is returned for session ids that were never issued or
// have been logged out.
var ErrUnknownSession = errors.New("invalid or expired session")

// ErrNotAuthenticated is returned when a session exists but has not yet
// completed the verifier exchange.
var ErrNotAuthenticated = errors.New("session not authenticated")

// Session holds the OAuth state for one authenticated user. RequestToken /
// RequestSecret are only set mid-flow; AccessToken / AccessSecret are set
// once the verifier has been exchanged.
type Session struct {
	ConsumerKey    string
	ConsumerSecret string
	RequestToken   string
	RequestSecret  string
	AccessToken    string
	AccessSecret   string
}

// Authenticated reports whether the session holds usable access tokens.
func (s *Session) Authenticated() bool {
	return s.AccessToken != "" && s.AccessSecret != ""
}

// SessionStore is an in-memory session registry keyed by random ids.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Put registers the session and returns its new id.
func (s *SessionStore) Put(session *Session) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	return id
}

// Get returns the session for id.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	return session, nil
}

// Clear removes every session, e.g. on logout.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
}
