package auth

import (
	"fmt"
	"sync"

	"github.com/optlens/optlens/internal/broker"
)

// Flow abstracts the OAuth handshake so tests can stub the network legs.
type Flow interface {
	RequestToken() (token, secret, authorizeURL string, err error)
	AccessToken(requestToken, requestSecret, verifier string) (accessToken, accessSecret string, err error)
}

// Manager ties the token cache, the session store, and the OAuth flow
// together. It hands out one broker client per authenticated session and
// memoizes it so the circuit breaker state survives across requests.
type Manager struct {
	consumerKey    string
	consumerSecret string
	sandbox        bool
	cache          *Cache
	sessions       *SessionStore

	mu           sync.Mutex
	brokers      map[string]broker.Broker
	paperSession string

	newFlow   func() Flow
	newBroker func(accessToken, accessSecret string) broker.Broker
}

// NewManager creates a manager for the given consumer key pair.
func NewManager(consumerKey, consumerSecret string, sandbox bool, cache *Cache) *Manager {
	m := &Manager{
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		sandbox:        sandbox,
		cache:          cache,
		sessions:       NewSessionStore(),
		brokers:        make(map[string]broker.Broker),
	}
	m.newFlow = func() Flow {
		return broker.NewOAuthFlow(consumerKey, consumerSecret, sandbox)
	}
	m.newBroker = func(accessToken, accessSecret string) broker.Broker {
		api := broker.NewEtradeAPI(consumerKey, consumerSecret, accessToken, accessSecret, sandbox)
		return broker.NewCircuitBreakerBroker(api)
	}
	return m
}

// WithFlow overrides the OAuth flow factory (tests).
func (m *Manager) WithFlow(newFlow func() Flow) *Manager {
	if newFlow != nil {
		m.newFlow = newFlow
	}
	return m
}

// WithBrokerFactory overrides the broker factory (tests, paper mode).
func (m *Manager) WithBrokerFactory(newBroker func(accessToken, accessSecret string) broker.Broker) *Manager {
	if newBroker != nil {
		m.newBroker = newBroker
	}
	return m
}

// OpenPaperSession registers a pre-authenticated session for paper mode,
// where the broker factory serves canned data and no OAuth handshake runs.
// The session is also returned by Restore so status checks see it.
func (m *Manager) OpenPaperSession() string {
	id := m.sessions.Put(&Session{
		ConsumerKey:  "paper",
		AccessToken:  "paper",
		AccessSecret: "paper",
	})
	m.mu.Lock()
	m.paperSession = id
	m.mu.Unlock()
	return id
}

// Restore tries to resume a session from cached tokens. It returns the new
// session id, or false when no usable cache entry exists.
func (m *Manager) Restore() (string, bool) {
	m.mu.Lock()
	paper := m.paperSession
	m.mu.Unlock()
	if paper != "" {
		return paper, true
	}

	tokens, err := m.cache.Load()
	if err != nil || tokens == nil {
		return "", false
	}

	id := m.sessions.Put(&Session{
		ConsumerKey:    tokens.ConsumerKey,
		ConsumerSecret: tokens.ConsumerSecret,
		AccessToken:    tokens.OAuthToken,
		AccessSecret:   tokens.OAuthTokenSecret,
	})
	return id, true
}

// RequestToken starts the OAuth flow: it obtains a request token, opens a
// session around it, and returns the URL the user must visit to get the
// verification code.
func (m *Manager) RequestToken() (sessionID, authorizeURL string, err error) {
	flow := m.newFlow()
	token, secret, authorizeURL, err := flow.RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("starting oauth flow: %w", err)
	}

	sessionID = m.sessions.Put(&Session{
		ConsumerKey:    m.consumerKey,
		ConsumerSecret: m.consumerSecret,
		RequestToken:   token,
		RequestSecret:  secret,
	})
	return sessionID, authorizeURL, nil
}

// AccessToken exchanges the verification code for access tokens and caches
// them to disk so the next start can skip the browser round trip.
func (m *Manager) AccessToken(sessionID, verifier string) error {
	session, err := m.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	if session.RequestToken == "" {
		return ErrUnknownSession
	}

	flow := m.newFlow()
	accessToken, accessSecret, err := flow.AccessToken(session.RequestToken, session.RequestSecret, verifier)
	if err != nil {
		return fmt.Errorf("exchanging verifier: %w", err)
	}

	session.AccessToken = accessToken
	session.AccessSecret = accessSecret

	if err := m.cache.Save(Tokens{
		ConsumerKey:      session.ConsumerKey,
		ConsumerSecret:   session.ConsumerSecret,
		OAuthToken:       accessToken,
		OAuthTokenSecret: accessSecret,
	}); err != nil {
		return fmt.Errorf("caching tokens: %w", err)
	}
	return nil
}

// Authenticated reports whether the session id maps to a session holding
// access tokens.
func (m *Manager) Authenticated(sessionID string) bool {
	session, err := m.sessions.Get(sessionID)
	return err == nil && session.Authenticated()
}

// Broker returns the brokerage client bound to the session's credentials.
func (m *Manager) Broker(sessionID string) (broker.Broker, error) {
	session, err := m.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.brokers[sessionID]; ok {
		return b, nil
	}
	b := m.newBroker(session.AccessToken, session.AccessSecret)
	m.brokers[sessionID] = b
	return b, nil
}

// Logout drops every session and removes the cached tokens. A paper session
// is reopened immediately so paper mode survives a logout.
func (m *Manager) Logout() error {
	m.sessions.Clear()
	m.mu.Lock()
	m.brokers = make(map[string]broker.Broker)
	paper := m.paperSession != ""
	m.paperSession = ""
	m.mu.Unlock()
	if paper {
		m.OpenPaperSession()
	}
	return m.cache.Clear()
}
