// Package interfaces defines service contracts for Lootly
package interfaces

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/lootly/lootly/internal/ebay"
)

// TokenManager provides OAuth token lifecycle management for eBay APIs.
type TokenManager interface {
	// GetToken returns a valid access token for the requested scope,
	// issuing or refreshing one as needed.
	GetToken(ctx context.Context, scope string) (string, error)

	// InitiateUserConsent builds an authorization URL for the given
	// delegated scopes and returns the pending consent session.
	InitiateUserConsent(scopes ...string) *ebay.ConsentSession

	// CompleteUserConsent exchanges the authorization callback for a
	// user token and caches it.
	CompleteUserConsent(ctx context.Context, callbackURL string) (*ebay.UserTokenInfo, error)

	// GetUserTokenInfo returns the cached user token's metadata, or nil
	// when no user has authorized.
	GetUserTokenInfo() *ebay.UserTokenInfo

	// RevokeUserConsent discards the cached user token.
	RevokeUserConsent()

	// GetCacheStatus reports every cached token with expiry detail.
	GetCacheStatus() ebay.CacheStatus

	// GetMetrics returns token acquisition counters.
	GetMetrics() ebay.Metrics

	// ClearCache discards all cached tokens.
	ClearCache()
}

// APIClient provides authenticated access to eBay REST APIs.
type APIClient interface {
	// Get performs an authenticated GET request
	Get(ctx context.Context, path string, params url.Values, scope string) (json.RawMessage, error)

	// Post performs an authenticated POST request
	Post(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error)

	// Put performs an authenticated PUT request
	Put(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error)

	// Delete performs an authenticated DELETE request
	Delete(ctx context.Context, path string, scope string) (json.RawMessage, error)

	// RateLimitStatus reports daily call budget usage
	RateLimitStatus() ebay.RateLimitStatus

	// Close releases pooled connection resources
	Close()
}

// TradingAPI provides access to the legacy XML Trading API.
type TradingAPI interface {
	// Call executes a named Trading API call with the given request XML
	Call(ctx context.Context, callName string, requestXML string) ([]byte, error)
}
