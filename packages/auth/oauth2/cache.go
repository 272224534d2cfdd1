package oauth2

import "sync"

// TokenCache is a concurrency-safe token store keyed by provider identity.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]*Token)}
}

func (c *TokenCache) Get(key string) *Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens[key]
}

func (c *TokenCache) Set(key string, token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
}

// Invalidate drops a cached token, forcing the next request to fetch a new one.
func (c *TokenCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
}

// Len returns the number of cached tokens.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}
