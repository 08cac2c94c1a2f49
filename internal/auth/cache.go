// Package auth manages OAuth credentials: the on-disk token cache that
// survives restarts and the in-memory session store that maps session ids
// to live brokerage credentials.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Tokens is the cached OAuth credential set.
type Tokens struct {
	ConsumerKey      string    `json:"consumer_key"`
	ConsumerSecret   string    `json:"consumer_secret"`
	OAuthToken       string    `json:"oauth_token"`
	OAuthTokenSecret string    `json:"oauth_token_secret"`
	CreatedAt        time.Time `json:"created_at"`
}

func (t *Tokens) complete() bool {
	return t.ConsumerKey != "" && t.ConsumerSecret != "" &&
		t.OAuthToken != "" && t.OAuthTokenSecret != ""
}

// Cache persists tokens to a JSON file so the user does not have to
// re-authorize on every start. Access tokens expire at midnight US Eastern,
// so entries older than the TTL are discarded on load.
type Cache struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
}

// NewCache creates a token cache at path with the given lifetime.
func NewCache(path string, ttl time.Duration) *Cache {
	return &Cache{path: path, ttl: ttl}
}

// Load returns the cached tokens, or nil when no usable entry exists.
// Expired or malformed entries are removed.
func (c *Cache) Load() (*Tokens, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading auth cache: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		_ = os.Remove(c.path)
		return nil, nil
	}

	if tokens.CreatedAt.IsZero() || time.Since(tokens.CreatedAt) > c.ttl {
		_ = os.Remove(c.path)
		return nil, nil
	}
	if !tokens.complete() {
		return nil, nil
	}

	return &tokens, nil
}

// Save writes tokens to disk, stamping CreatedAt.
func (c *Cache) Save(tokens Tokens) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens.CreatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating auth cache dir: %w", err)
	}

	data, err := json.MarshalIndent(&tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding auth cache: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing auth cache: %w", err)
	}
	return nil
}

// Clear removes the cached tokens. Missing files are not an error.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing auth cache: %w", err)
	}
	return nil
}
