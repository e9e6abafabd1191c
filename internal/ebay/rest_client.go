package ebay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lootly/lootly/internal/common"
)

const (
	sandboxAPIBaseURL    = "https://api.sandbox.ebay.com"
	productionAPIBaseURL = "https://api.ebay.com"

	DefaultRateLimitPerDay    = 5000
	DefaultRateLimitPerSecond = 10
	DefaultMarketplace        = "EBAY_US"
)

// TokenSource supplies access tokens for outbound API calls and supports
// invalidation when the platform rejects one. *OAuthManager implements it.
type TokenSource interface {
	GetToken(ctx context.Context, scope string) (string, error)
	ClearCache()
}

// RestConfig configures the REST client.
type RestConfig struct {
	Sandbox            bool
	BaseURL            string // overrides the environment-derived base URL
	Marketplace        string
	RateLimitPerDay    int
	RateLimitPerSecond int
	Timeout            time.Duration
	Retry              RetryConfig
}

func (c RestConfig) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Sandbox {
		return sandboxAPIBaseURL
	}
	return productionAPIBaseURL
}

// RateLimitStatus is a snapshot of daily budget usage.
type RateLimitStatus struct {
	CallsToday  int       `json:"calls_today"`
	CallsLimit  int       `json:"calls_limit"`
	WindowStart time.Time `json:"window_start"`
	PercentUsed float64   `json:"percentage_used"`
}

// dailyBudget enforces the daily API call quota over a UTC calendar-day
// window. The check and the increment are a single atomic step so two
// near-simultaneous callers cannot both pass a check that admits one.
type dailyBudget struct {
	mu          sync.Mutex
	limit       int
	count       int
	windowStart time.Time
}

func newDailyBudget(limit int) *dailyBudget {
	if limit <= 0 {
		limit = DefaultRateLimitPerDay
	}
	return &dailyBudget{limit: limit, windowStart: time.Now().UTC()}
}

// acquire consumes one call from the budget, or fails fast with a
// RateLimitError when the day's quota is spent.
func (b *dailyBudget) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	if now.YearDay() != b.windowStart.YearDay() || now.Year() != b.windowStart.Year() {
		b.windowStart = now
		b.count = 0
	}

	if b.count >= b.limit {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		return &RateLimitError{
			Message:    fmt.Sprintf("daily API call budget exhausted (%d calls)", b.limit),
			RetryAfter: midnight.Sub(now),
		}
	}
	b.count++
	return nil
}

func (b *dailyBudget) status() RateLimitStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return RateLimitStatus{
		CallsToday:  b.count,
		CallsLimit:  b.limit,
		WindowStart: b.windowStart,
		PercentUsed: float64(b.count) / float64(b.limit) * 100,
	}
}

// RestClient is the single egress point for eBay REST API calls. It
// resolves tokens through the OAuth manager, enforces the daily call
// budget, and executes requests through the shared retry policy.
type RestClient struct {
	config     RestConfig
	tokens     TokenSource
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
	budget     *dailyBudget
}

// RestOption configures the client
type RestOption func(*RestClient)

// WithRestLogger sets the logger
func WithRestLogger(logger *common.Logger) RestOption {
	return func(c *RestClient) {
		c.logger = logger
	}
}

// WithRestHTTPClient sets the HTTP client
func WithRestHTTPClient(client *http.Client) RestOption {
	return func(c *RestClient) {
		c.httpClient = client
	}
}

// NewRestClient creates a REST client over the given token source.
func NewRestClient(tokens TokenSource, config RestConfig, opts ...RestOption) *RestClient {
	if config.Marketplace == "" {
		config.Marketplace = DefaultMarketplace
	}
	if config.RateLimitPerSecond <= 0 {
		config.RateLimitPerSecond = DefaultRateLimitPerSecond
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}

	c := &RestClient{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     common.NewSilentLogger(),
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimitPerSecond), config.RateLimitPerSecond),
		budget:     newDailyBudget(config.RateLimitPerDay),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get performs an authenticated GET request.
func (c *RestClient) Get(ctx context.Context, path string, params url.Values, scope string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, path, params, nil, scope)
}

// Post performs an authenticated POST request with a JSON body.
func (c *RestClient) Post(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPost, path, nil, body, scope)
}

// Put performs an authenticated PUT request with a JSON body.
func (c *RestClient) Put(ctx context.Context, path string, body interface{}, scope string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodPut, path, nil, body, scope)
}

// Delete performs an authenticated DELETE request.
func (c *RestClient) Delete(ctx context.Context, path string, scope string) (json.RawMessage, error) {
	return c.request(ctx, http.MethodDelete, path, nil, nil, scope)
}

// request runs one logical API call: token, budget, limiter, then the
// HTTP exchange through the retry policy. A 401 invalidates the cached
// token and the call is replayed once with a fresh one.
func (c *RestClient) request(ctx context.Context, method, path string, params url.Values, body interface{}, scope string) (json.RawMessage, error) {
	// ConsentRequiredError propagates unchanged from here.
	token, err := c.tokens.GetToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	if err := c.budget.acquire(); err != nil {
		c.logger.Warn().Err(err).Msg("daily call budget exhausted")
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	result, err := c.execute(ctx, method, path, params, payload, token)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.logger.Warn().Msg("token rejected, refreshing and replaying once")
		c.tokens.ClearCache()
		token, tokenErr := c.tokens.GetToken(ctx, scope)
		if tokenErr != nil {
			return nil, tokenErr
		}
		result, err = c.execute(ctx, method, path, params, payload, token)
	}
	return result, err
}

// execute drives attempts of one HTTP exchange through the retry policy.
func (c *RestClient) execute(ctx context.Context, method, path string, params url.Values, payload []byte, token string) (json.RawMessage, error) {
	reqURL := c.config.baseURL() + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var result json.RawMessage
	err := Retry(ctx, c.logger, c.config.Retry, func() error {
		var err error
		result, err = c.doRequest(ctx, method, reqURL, payload, token)
		return err
	})
	return result, err
}

func (c *RestClient) doRequest(ctx context.Context, method, reqURL string, payload []byte, token string) (json.RawMessage, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.config.Marketplace)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Language", "en-US")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Message: method + " " + reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Message: "failed to read response body", Err: err}
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("eBay API request")

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		if len(body) == 0 {
			return json.RawMessage("{}"), nil
		}
		return json.RawMessage(body), nil
	}

	return nil, NewAPIError(resp.StatusCode, body, resp.Header.Get("X-EBAY-C-REQUEST-ID"))
}

// RateLimitStatus returns current daily budget usage.
func (c *RestClient) RateLimitStatus() RateLimitStatus {
	return c.budget.status()
}

// Close releases pooled connection resources. Callers are expected to
// run it on every exit path.
func (c *RestClient) Close() {
	c.httpClient.CloseIdleConnections()
}
