package ebay

import (
	"testing"
	"time"
)

func newTestToken(expiresIn time.Duration) *CachedToken {
	now := time.Now()
	return &CachedToken{
		AccessToken: "tok-" + expiresIn.String(),
		TokenType:   "Bearer",
		IssuedAt:    now,
		ExpiresAt:   now.Add(expiresIn),
	}
}

func TestTokenCache_GetRespectsBuffer(t *testing.T) {
	cache := NewTokenCache()
	buffer := 5 * time.Minute

	// Expires in 2 hours: well outside the buffer
	cache.Put("client_credentials:scope", newTestToken(2*time.Hour))
	if _, ok := cache.Get("client_credentials:scope", buffer); !ok {
		t.Error("fresh token should be returned")
	}

	// Expires in 3 minutes: inside the 5 minute buffer, treated as absent
	cache.Put("client_credentials:scope", newTestToken(3*time.Minute))
	if _, ok := cache.Get("client_credentials:scope", buffer); ok {
		t.Error("token expiring within the buffer should report absent")
	}

	// The same token under a 1 minute buffer is still usable
	if _, ok := cache.Get("client_credentials:scope", time.Minute); !ok {
		t.Error("token expiring outside a shorter buffer should be returned")
	}
}

func TestTokenCache_PeekIgnoresExpiry(t *testing.T) {
	cache := NewTokenCache()
	expired := newTestToken(-time.Minute)
	expired.RefreshToken = "refresh-1"
	cache.Put("authorization_code:user", expired)

	if _, ok := cache.Get("authorization_code:user", 0); ok {
		t.Error("Get should not return an expired token")
	}

	token, ok := cache.Peek("authorization_code:user")
	if !ok {
		t.Fatal("Peek should return the expired entry")
	}
	if token.RefreshToken != "refresh-1" {
		t.Errorf("RefreshToken = %q, want refresh-1", token.RefreshToken)
	}
}

func TestTokenCache_DeleteAndClear(t *testing.T) {
	cache := NewTokenCache()
	cache.Put("a", newTestToken(time.Hour))
	cache.Put("b", newTestToken(time.Hour))

	cache.Delete("a")
	if _, ok := cache.Get("a", 0); ok {
		t.Error("deleted entry should be gone")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", cache.Len())
	}
}

func TestTokenCache_Status(t *testing.T) {
	cache := NewTokenCache()
	cache.Put("fresh", newTestToken(2*time.Hour))
	cache.Put("near", newTestToken(8*time.Minute))
	cache.Put("expired", newTestToken(2*time.Minute))

	status := cache.Status(5*time.Minute, 10*time.Minute)
	if status.TotalCachedTokens != 3 {
		t.Fatalf("TotalCachedTokens = %d, want 3", status.TotalCachedTokens)
	}

	byKey := make(map[string]TokenStatus)
	for _, ts := range status.Tokens {
		byKey[ts.CacheKey] = ts
	}

	if byKey["fresh"].IsExpired || byKey["fresh"].IsNearExpiry {
		t.Error("fresh token should be neither expired nor near expiry")
	}
	if byKey["near"].IsExpired {
		t.Error("near-expiry token should not be expired under the 5m buffer")
	}
	if !byKey["near"].IsNearExpiry {
		t.Error("token expiring in 8m should be near expiry under the 10m buffer")
	}
	if !byKey["expired"].IsExpired {
		t.Error("token expiring in 2m should be expired under the 5m buffer")
	}
}

func TestCachedToken_HasRefreshToken(t *testing.T) {
	token := newTestToken(time.Hour)
	if token.HasRefreshToken() {
		t.Error("token without a refresh token should report false")
	}

	token.RefreshToken = "refresh-1"
	if !token.HasRefreshToken() {
		t.Error("token with a refresh token should report true")
	}

	token.RefreshExpiresAt = time.Now().Add(-time.Minute)
	if token.HasRefreshToken() {
		t.Error("expired refresh token should report false")
	}
}
