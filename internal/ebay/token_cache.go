package ebay

import (
	"sync"
	"time"
)

// Grant types used to build cache keys.
const (
	grantClientCredentials = "client_credentials"
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// CachedToken is an issued access token with its expiry metadata. Values
// are never mutated after creation; a refresh builds a new value and
// replaces the cache entry.
type CachedToken struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	Scope            string    `json:"scope,omitempty"`
	UserID           string    `json:"user_id,omitempty"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
}

// IsExpired reports whether the token is expired under the given buffer:
// a token expiring inside the buffer window is treated as already expired.
func (t *CachedToken) IsExpired(buffer time.Duration) bool {
	return !time.Now().Before(t.ExpiresAt.Add(-buffer))
}

// TimeUntilExpiry returns the remaining token lifetime.
func (t *CachedToken) TimeUntilExpiry() time.Duration {
	return time.Until(t.ExpiresAt)
}

// HasRefreshToken reports whether a usable refresh token is on file.
func (t *CachedToken) HasRefreshToken() bool {
	if t.RefreshToken == "" {
		return false
	}
	if !t.RefreshExpiresAt.IsZero() && !time.Now().Before(t.RefreshExpiresAt) {
		return false
	}
	return true
}

// TokenStatus describes one cache entry for introspection.
type TokenStatus struct {
	CacheKey        string        `json:"cache_key"`
	Scope           string        `json:"scope,omitempty"`
	ExpiresAt       time.Time     `json:"expires_at"`
	TimeUntilExpiry time.Duration `json:"time_until_expiry"`
	IsExpired       bool          `json:"is_expired"`
	IsNearExpiry    bool          `json:"is_near_expiry"`
}

// CacheStatus is a snapshot of the whole token cache.
type CacheStatus struct {
	TotalCachedTokens int           `json:"total_cached_tokens"`
	Tokens            []TokenStatus `json:"tokens"`
}

// TokenCache is an in-process keyed store of issued tokens. All methods
// are safe for concurrent use; Get never returns a token the caller must
// re-validate against the supplied buffer.
type TokenCache struct {
	mu     sync.RWMutex
	tokens map[string]*CachedToken
}

// NewTokenCache creates an empty token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{tokens: make(map[string]*CachedToken)}
}

// Get returns the token for key if present and not expired under the
// buffer. An expired entry reports absent but is left in place: user
// entries keep their refresh token, and Put replaces them anyway.
func (c *TokenCache) Get(key string, buffer time.Duration) (*CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token, ok := c.tokens[key]
	if !ok || token.IsExpired(buffer) {
		return nil, false
	}
	return token, true
}

// Peek returns the entry for key regardless of expiry. The OAuth manager
// uses this to reach the refresh token of a stale user entry.
func (c *TokenCache) Peek(key string) (*CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	token, ok := c.tokens[key]
	return token, ok
}

// Put unconditionally replaces any existing entry for key.
func (c *TokenCache) Put(key string, token *CachedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[key] = token
}

// Delete removes the entry for key if present.
func (c *TokenCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, key)
}

// Clear empties the cache.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = make(map[string]*CachedToken)
}

// Len returns the number of cached entries.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tokens)
}

// Status reports every entry with expiry flags computed under two
// independent buffers: expiredBuffer for "expired now" and nearBuffer for
// "should proactively refresh".
func (c *TokenCache) Status(expiredBuffer, nearBuffer time.Duration) CacheStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := CacheStatus{
		TotalCachedTokens: len(c.tokens),
		Tokens:            make([]TokenStatus, 0, len(c.tokens)),
	}
	for key, token := range c.tokens {
		status.Tokens = append(status.Tokens, TokenStatus{
			CacheKey:        key,
			Scope:           token.Scope,
			ExpiresAt:       token.ExpiresAt,
			TimeUntilExpiry: token.TimeUntilExpiry(),
			IsExpired:       token.IsExpired(expiredBuffer),
			IsNearExpiry:    token.IsExpired(nearBuffer),
		})
	}
	return status
}
