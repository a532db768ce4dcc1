package tokens

import (
	"errors"
	"sync"
)

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// Cache is the in-memory view of the token table: token -> requests per rate interval.
type Cache struct {
	mu    sync.RWMutex
	cache map[string]int
}

// NewCache returns an empty, not yet ready cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps in a fresh copy of m.
func (c *Cache) Replace(m map[string]int) {
	next := make(map[string]int, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.cache = next
	c.mu.Unlock()
}

// Ready returns true if the cache has been initialized at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache != nil
}

// Validate checks whether token exists in the cache.
func (c *Cache) Validate(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[token]
	return ok
}

// RateLimit returns the configured limit for token. Unknown tokens get 0,
// which disables per-token limiting.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache[token]
}
