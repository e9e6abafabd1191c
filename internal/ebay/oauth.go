package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/lootly/lootly/internal/common"
)

const (
	defaultExpiryBuffer     = 5 * time.Minute
	defaultNearExpiryBuffer = 10 * time.Minute
	defaultTokenLifetime    = 7200 // seconds, when expires_in is absent
	consentSessionTTL       = 10 * time.Minute

	// userCacheKey holds the single delegated-user grant. The user's
	// identity is not known until the token endpoint reports it, so the
	// key is fixed and the user id lives on the cached value.
	userCacheKey = grantAuthorizationCode + ":user"
)

// OAuthConfig is the immutable configuration for the OAuth manager.
// Created once at process start.
type OAuthConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	Sandbox        bool
	RequestTimeout time.Duration
	Retry          RetryConfig

	// TokenEndpoint and AuthorizeEndpoint override the environment-derived
	// URLs when set.
	TokenEndpoint     string
	AuthorizeEndpoint string
}

// Validate reports missing credentials as a ConfigurationError.
func (c OAuthConfig) Validate() error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return &ConfigurationError{
			Message:       "eBay OAuth credentials are not configured",
			MissingFields: missing,
		}
	}
	return nil
}

// TokenURL returns the token endpoint for the configured environment.
func (c OAuthConfig) TokenURL() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	if c.Sandbox {
		return "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	}
	return "https://api.ebay.com/identity/v1/oauth2/token"
}

// AuthorizeURL returns the user-consent endpoint for the environment.
func (c OAuthConfig) AuthorizeURL() string {
	if c.AuthorizeEndpoint != "" {
		return c.AuthorizeEndpoint
	}
	if c.Sandbox {
		return "https://auth.sandbox.ebay.com/oauth2/authorize"
	}
	return "https://auth.ebay.com/oauth2/authorize"
}

// basicAuthHeader builds the Basic auth value for token requests.
func (c OAuthConfig) basicAuthHeader() string {
	credentials := c.ClientID + ":" + c.ClientSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(credentials))
}

// tokenResponse is the token endpoint's JSON response.
type tokenResponse struct {
	AccessToken           string `json:"access_token"`
	TokenType             string `json:"token_type"`
	ExpiresIn             int    `json:"expires_in"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiresIn int    `json:"refresh_token_expires_in"`
	Scope                 string `json:"scope"`
	UserID                string `json:"user_id"`
}

// ConsentSession is the transient state of an in-flight
// authorization-code flow, keyed by its opaque state value.
type ConsentSession struct {
	State            string    `json:"state"`
	Scopes           []string  `json:"scopes"`
	AuthorizationURL string    `json:"authorization_url"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// UserTokenInfo is a read-only view of the cached delegated-user grant.
type UserTokenInfo struct {
	UserID           string    `json:"user_id,omitempty"`
	Scopes           []string  `json:"scopes"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitempty"`
	HasRefreshToken  bool      `json:"has_refresh_token"`
}

// Metrics is a snapshot of the manager's monotonic counters.
type Metrics struct {
	TokenRequests   int64 `json:"token_requests"`
	TokenCacheHits  int64 `json:"token_cache_hits"`
	TokenCacheMiss  int64 `json:"token_cache_misses"`
	TokenErrors     int64 `json:"token_errors"`
	SingleFlightHit int64 `json:"singleflight_shared"`
}

// OAuthManager produces valid access tokens for requested scopes,
// transparently choosing between the process-wide application grant and
// the delegated-user grant, and drives the consent flow when delegation
// is required but absent.
type OAuthManager struct {
	config     OAuthConfig
	cache      *TokenCache
	httpClient *http.Client
	logger     *common.Logger

	expiryBuffer     time.Duration
	nearExpiryBuffer time.Duration

	// group coalesces concurrent refreshes per cache key so a burst of
	// callers issues a single token-endpoint request.
	group singleflight.Group

	sessMu   sync.Mutex
	sessions map[string]*ConsentSession

	tokenRequests   atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	tokenErrors     atomic.Int64
	singleFlightHit atomic.Int64
}

// OAuthOption configures the manager
type OAuthOption func(*OAuthManager)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) OAuthOption {
	return func(m *OAuthManager) {
		m.logger = logger
	}
}

// WithHTTPClient sets the HTTP client used for token-endpoint calls
func WithHTTPClient(client *http.Client) OAuthOption {
	return func(m *OAuthManager) {
		m.httpClient = client
	}
}

// WithExpiryBuffer sets how long before nominal expiry a token is treated
// as already expired
func WithExpiryBuffer(buffer time.Duration) OAuthOption {
	return func(m *OAuthManager) {
		m.expiryBuffer = buffer
	}
}

// WithNearExpiryBuffer sets the proactive-refresh reporting threshold
func WithNearExpiryBuffer(buffer time.Duration) OAuthOption {
	return func(m *OAuthManager) {
		m.nearExpiryBuffer = buffer
	}
}

// NewOAuthManager creates an OAuth manager. It fails fast with a
// ConfigurationError when credentials are missing.
func NewOAuthManager(config OAuthConfig, opts ...OAuthOption) (*OAuthManager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}

	m := &OAuthManager{
		config:           config,
		cache:            NewTokenCache(),
		httpClient:       &http.Client{Timeout: config.RequestTimeout},
		logger:           common.NewSilentLogger(),
		expiryBuffer:     defaultExpiryBuffer,
		nearExpiryBuffer: defaultNearExpiryBuffer,
		sessions:         make(map[string]*ConsentSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetToken returns a valid access token for the requested scope. App
// scopes use the client-credentials grant with caching; delegated scopes
// use the cached user grant, refreshing it when stale, and fail with a
// ConsentRequiredError when no user grant is on file.
func (m *OAuthManager) GetToken(ctx context.Context, scope string) (string, error) {
	if scope == "" {
		scope = ScopeAPI
	}
	if RequiresUserConsent(scope) {
		return m.getUserToken(ctx, scope)
	}
	return m.getAppToken(ctx, scope)
}

func (m *OAuthManager) getAppToken(ctx context.Context, scope string) (string, error) {
	key := grantClientCredentials + ":" + scope

	if token, ok := m.cache.Get(key, m.expiryBuffer); ok {
		m.cacheHits.Add(1)
		m.logger.Debug().Str("scope", scope).Dur("expires_in", token.TimeUntilExpiry()).Msg("token cache hit")
		return token.AccessToken, nil
	}
	m.cacheMisses.Add(1)

	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		// A caller that queued behind an in-flight refresh finds the
		// fresh token already cached.
		if token, ok := m.cache.Get(key, m.expiryBuffer); ok {
			return token, nil
		}

		m.logger.Info().Str("scope", scope).Msg("requesting application token")
		form := url.Values{
			"grant_type": {grantClientCredentials},
			"scope":      {scope},
		}
		token, err := m.requestToken(ctx, form)
		if err != nil {
			return nil, err
		}
		if token.Scope == "" {
			token.Scope = scope
		}
		m.cache.Put(key, token)
		return token, nil
	})
	if shared {
		m.singleFlightHit.Add(1)
	}
	if err != nil {
		return "", err
	}
	return v.(*CachedToken).AccessToken, nil
}

func (m *OAuthManager) getUserToken(ctx context.Context, scope string) (string, error) {
	if token, ok := m.cache.Get(userCacheKey, m.expiryBuffer); ok {
		m.cacheHits.Add(1)
		return token.AccessToken, nil
	}
	m.cacheMisses.Add(1)

	v, err, shared := m.group.Do(userCacheKey, func() (interface{}, error) {
		if token, ok := m.cache.Get(userCacheKey, m.expiryBuffer); ok {
			return token, nil
		}

		// A stale entry may still carry a usable refresh token.
		if prev, ok := m.cache.Peek(userCacheKey); ok && prev.HasRefreshToken() {
			token, err := m.refreshUserToken(ctx, prev)
			if err == nil {
				m.cache.Put(userCacheKey, token)
				return token, nil
			}
			var authErr *AuthenticationError
			if !errors.As(err, &authErr) {
				return nil, err
			}
			// The refresh token itself was rejected: drop the grant and
			// require fresh consent.
			m.logger.Warn().Err(err).Msg("refresh token rejected, user consent required again")
			m.cache.Delete(userCacheKey)
		}

		return nil, m.consentRequired(scope)
	})
	if shared {
		m.singleFlightHit.Add(1)
	}
	if err != nil {
		return "", err
	}
	return v.(*CachedToken).AccessToken, nil
}

// consentRequired builds the control-flow signal for a missing user
// grant, with a ready-to-use authorization URL.
func (m *OAuthManager) consentRequired(scope string) error {
	missing := missingConsentScopes(scope)
	session := m.InitiateUserConsent(missing...)
	return &ConsentRequiredError{
		MissingScopes:    missing,
		AuthorizationURL: session.AuthorizationURL,
	}
}

// refreshUserToken exchanges a refresh token for a new access token,
// preserving the refresh token when the endpoint does not rotate it.
func (m *OAuthManager) refreshUserToken(ctx context.Context, prev *CachedToken) (*CachedToken, error) {
	m.logger.Info().Msg("refreshing user access token")
	form := url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {prev.RefreshToken},
	}
	if prev.Scope != "" {
		form.Set("scope", prev.Scope)
	}

	token, err := m.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		token.RefreshToken = prev.RefreshToken
		token.RefreshExpiresAt = prev.RefreshExpiresAt
	}
	if token.Scope == "" {
		token.Scope = prev.Scope
	}
	if token.UserID == "" {
		token.UserID = prev.UserID
	}
	return token, nil
}

// requestToken posts a grant to the token endpoint through the shared
// retry policy. Network failures and 5xx responses are retried;
// credential and scope errors are not.
func (m *OAuthManager) requestToken(ctx context.Context, form url.Values) (*CachedToken, error) {
	var token *CachedToken
	err := Retry(ctx, m.logger, m.config.Retry, func() error {
		var err error
		token, err = m.doTokenRequest(ctx, form)
		if err != nil {
			m.tokenErrors.Add(1)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

func (m *OAuthManager) doTokenRequest(ctx context.Context, form url.Values) (*CachedToken, error) {
	m.tokenRequests.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Authorization", m.config.basicAuthHeader())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Message: "token request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Message: "failed to read token response", Err: err}
	}

	m.logger.Debug().Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("token endpoint call")

	if resp.StatusCode != http.StatusOK {
		err := classifyTokenError(resp.StatusCode, body)
		m.logger.Error().Int("status", resp.StatusCode).Err(err).Msg("token request rejected")
		return nil, err
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &NetworkError{Message: "failed to decode token response", Err: err}
	}
	if parsed.AccessToken == "" {
		return nil, &AuthenticationError{Message: "token response missing access_token"}
	}

	expiresIn := parsed.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenLifetime
	}
	tokenType := parsed.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	now := time.Now()
	token := &CachedToken{
		AccessToken:  parsed.AccessToken,
		TokenType:    tokenType,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		Scope:        parsed.Scope,
		UserID:       parsed.UserID,
		RefreshToken: parsed.RefreshToken,
		IssuedAt:     now,
	}
	if parsed.RefreshTokenExpiresIn > 0 {
		token.RefreshExpiresAt = now.Add(time.Duration(parsed.RefreshTokenExpiresIn) * time.Second)
	}

	m.logger.Info().Int("expires_in", expiresIn).Msg("token obtained")
	return token, nil
}

// InitiateUserConsent builds the authorization URL for the requested
// delegated scopes (all consent scopes when none are given) and stores a
// session keyed by a fresh opaque state value.
func (m *OAuthManager) InitiateUserConsent(scopes ...string) *ConsentSession {
	if len(scopes) == 0 {
		scopes = UserConsentScopes
	}

	state := uuid.NewString()
	q := url.Values{
		"client_id":     {m.config.ClientID},
		"redirect_uri":  {m.config.RedirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {state},
	}

	now := time.Now()
	session := &ConsentSession{
		State:            state,
		Scopes:           scopes,
		AuthorizationURL: m.config.AuthorizeURL() + "?" + q.Encode(),
		CreatedAt:        now,
		ExpiresAt:        now.Add(consentSessionTTL),
	}

	m.sessMu.Lock()
	for s, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			delete(m.sessions, s)
		}
	}
	m.sessions[state] = session
	m.sessMu.Unlock()

	m.logger.Info().Int("scopes", len(scopes)).Msg("user consent initiated")
	return session
}

// CompleteUserConsent parses the authorization code and state out of the
// consent callback URL, exchanges the code for a user token pair, and
// caches it. The session is consumed whatever the exchange outcome.
func (m *OAuthManager) CompleteUserConsent(ctx context.Context, callbackURL string) (*UserTokenInfo, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return nil, &ValidationError{Field: "callback_url", Message: "callback URL is not a valid URL"}
	}
	q := parsed.Query()

	code := q.Get("code")
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "callback URL is missing the authorization code"}
	}

	state := q.Get("state")
	m.sessMu.Lock()
	session, ok := m.sessions[state]
	if ok {
		delete(m.sessions, state)
	}
	m.sessMu.Unlock()
	if state == "" || !ok || time.Now().After(session.ExpiresAt) {
		return nil, &ValidationError{Field: "state", Message: "state does not match any pending consent session"}
	}

	form := url.Values{
		"grant_type":   {grantAuthorizationCode},
		"code":         {code},
		"redirect_uri": {m.config.RedirectURI},
	}
	token, err := m.requestToken(ctx, form)
	if err != nil {
		return nil, err
	}
	if token.Scope == "" {
		token.Scope = strings.Join(session.Scopes, " ")
	}
	m.cache.Put(userCacheKey, token)

	m.logger.Info().Str("user_id", token.UserID).Time("expires_at", token.ExpiresAt).Msg("user consent completed")
	return m.userTokenInfo(token), nil
}

// GetUserTokenInfo returns a read-only view of the cached user grant, or
// nil when no user has consented.
func (m *OAuthManager) GetUserTokenInfo() *UserTokenInfo {
	token, ok := m.cache.Peek(userCacheKey)
	if !ok {
		return nil
	}
	return m.userTokenInfo(token)
}

func (m *OAuthManager) userTokenInfo(token *CachedToken) *UserTokenInfo {
	return &UserTokenInfo{
		UserID:           token.UserID,
		Scopes:           strings.Fields(token.Scope),
		IssuedAt:         token.IssuedAt,
		ExpiresAt:        token.ExpiresAt,
		RefreshExpiresAt: token.RefreshExpiresAt,
		HasRefreshToken:  token.RefreshToken != "",
	}
}

// RevokeUserConsent deletes the cached user token pair. Delegated-scope
// calls will require consent again.
func (m *OAuthManager) RevokeUserConsent() {
	m.cache.Delete(userCacheKey)
	m.logger.Info().Msg("user consent revoked")
}

// GetMetrics returns a snapshot of the token counters.
func (m *OAuthManager) GetMetrics() Metrics {
	return Metrics{
		TokenRequests:   m.tokenRequests.Load(),
		TokenCacheHits:  m.cacheHits.Load(),
		TokenCacheMiss:  m.cacheMisses.Load(),
		TokenErrors:     m.tokenErrors.Load(),
		SingleFlightHit: m.singleFlightHit.Load(),
	}
}

// ResetMetrics zeroes the token counters.
func (m *OAuthManager) ResetMetrics() {
	m.tokenRequests.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.tokenErrors.Store(0)
	m.singleFlightHit.Store(0)
}

// GetCacheStatus reports every cached token with expiry flags under the
// configured buffers.
func (m *OAuthManager) GetCacheStatus() CacheStatus {
	return m.cache.Status(m.expiryBuffer, m.nearExpiryBuffer)
}

// ClearCache empties the token cache.
func (m *OAuthManager) ClearCache() {
	m.cache.Clear()
	m.logger.Info().Msg("token cache cleared")
}
