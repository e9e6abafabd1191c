package main

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lootly/lootly/internal/ebay"
)

// mockTokenManager implements interfaces.TokenManager for handler tests.
type mockTokenManager struct {
	token        string
	tokenErr     error
	userInfo     *ebay.UserTokenInfo
	consentInfo  *ebay.UserTokenInfo
	consentErr   error
	cacheStatus  ebay.CacheStatus
	metrics      ebay.Metrics
	revoked      bool
	cleared      bool
	lastScopes   []string
	lastCallback string
}

func (m *mockTokenManager) GetToken(ctx context.Context, scope string) (string, error) {
	if m.tokenErr != nil {
		return "", m.tokenErr
	}
	return m.token, nil
}

func (m *mockTokenManager) InitiateUserConsent(scopes ...string) *ebay.ConsentSession {
	if len(scopes) == 0 {
		scopes = ebay.UserConsentScopes
	}
	m.lastScopes = scopes
	now := time.Now()
	return &ebay.ConsentSession{
		State:            "state-123",
		Scopes:           scopes,
		AuthorizationURL: "https://auth.sandbox.ebay.com/oauth2/authorize?state=state-123",
		CreatedAt:        now,
		ExpiresAt:        now.Add(10 * time.Minute),
	}
}

func (m *mockTokenManager) CompleteUserConsent(ctx context.Context, callbackURL string) (*ebay.UserTokenInfo, error) {
	m.lastCallback = callbackURL
	if m.consentErr != nil {
		return nil, m.consentErr
	}
	return m.consentInfo, nil
}

func (m *mockTokenManager) GetUserTokenInfo() *ebay.UserTokenInfo { return m.userInfo }
func (m *mockTokenManager) RevokeUserConsent()                    { m.revoked = true }
func (m *mockTokenManager) GetCacheStatus() ebay.CacheStatus      { return m.cacheStatus }
func (m *mockTokenManager) GetMetrics() ebay.Metrics              { return m.metrics }
func (m *mockTokenManager) ClearCache()                           { m.cleared = true }

// mockAPIClient implements interfaces.APIClient for handler tests.
type mockAPIClient struct {
	response   json.RawMessage
	err        error
	lastPath   string
	lastParams url.Values
	rateStatus ebay.RateLimitStatus
}

func (m *mockAPIClient) Get(ctx context.Context, path string, params url.Values, scope string) (json.RawMessage, error) {
	m.lastPath = path
	m.lastParams = params
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func (m *mockAPIClient) Post(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error) {
	m.lastPath = path
	return m.response, m.err
}

func (m *mockAPIClient) Put(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error) {
	m.lastPath = path
	return m.response, m.err
}

func (m *mockAPIClient) Delete(ctx context.Context, path string, scope string) (json.RawMessage, error) {
	m.lastPath = path
	return m.response, m.err
}

func (m *mockAPIClient) RateLimitStatus() ebay.RateLimitStatus { return m.rateStatus }
func (m *mockAPIClient) Close()                                {}

// mockTradingAPI implements interfaces.TradingAPI for handler tests.
type mockTradingAPI struct {
	response []byte
	err      error
	lastCall string
	lastXML  string
}

func (m *mockTradingAPI) Call(ctx context.Context, callName string, requestXML string) ([]byte, error) {
	m.lastCall = callName
	m.lastXML = requestXML
	return m.response, m.err
}

// callRequest builds a CallToolRequest with the given arguments.
func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text payload from a tool result.
func resultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}
