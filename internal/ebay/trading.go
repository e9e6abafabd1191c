package ebay

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lootly/lootly/internal/common"
)

const (
	sandboxTradingURL    = "https://api.sandbox.ebay.com/ws/api.dll"
	productionTradingURL = "https://api.ebay.com/ws/api.dll"

	DefaultTradingVersion = "1193"
	DefaultTradingSiteID  = "0" // US
)

// TradingConfig configures the legacy Trading API adapter.
type TradingConfig struct {
	Sandbox bool
	BaseURL string // overrides the environment-derived endpoint
	SiteID  string
	Version string
	Timeout time.Duration
	Retry   RetryConfig
}

func (c TradingConfig) endpoint() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Sandbox {
		return sandboxTradingURL
	}
	return productionTradingURL
}

// TradingClient is a thin adapter over the legacy XML Trading API. It has
// no cache or retry logic of its own: tokens come from the shared OAuth
// manager and calls run through the shared retry policy, so the two API
// surfaces share one tuning surface.
type TradingClient struct {
	config     TradingConfig
	tokens     TokenSource
	httpClient *http.Client
	logger     *common.Logger
}

// NewTradingClient creates a Trading API adapter over the token source.
func NewTradingClient(tokens TokenSource, config TradingConfig, logger *common.Logger) *TradingClient {
	if config.SiteID == "" {
		config.SiteID = DefaultTradingSiteID
	}
	if config.Version == "" {
		config.Version = DefaultTradingVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	return &TradingClient{
		config:     config,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}
}

// tradingErrorDetail is one <Errors> entry in a Trading API response.
type tradingErrorDetail struct {
	ShortMessage string `xml:"ShortMessage"`
	LongMessage  string `xml:"LongMessage"`
	ErrorCode    string `xml:"ErrorCode"`
	SeverityCode string `xml:"SeverityCode"`
}

// tradingAck is the envelope subset needed to judge a response.
type tradingAck struct {
	Ack    string               `xml:"Ack"`
	Errors []tradingErrorDetail `xml:"Errors"`
}

// Call executes a Trading API call with the given inner request XML and
// returns the raw response body. Failures reported in the XML envelope
// are classified the same way as REST failures.
func (t *TradingClient) Call(ctx context.Context, callName string, requestXML string) ([]byte, error) {
	// The Trading API authenticates with the delegated user token.
	token, err := t.tokens.GetToken(ctx, ScopeSellAccount)
	if err != nil {
		return nil, err
	}

	envelope := fmt.Sprintf(
		`<?xml version="1.0" encoding="utf-8"?><%sRequest xmlns="urn:ebay:apis:eBLBaseComponents">%s</%sRequest>`,
		callName, requestXML, callName)

	var body []byte
	err = Retry(ctx, t.logger, t.config.Retry, func() error {
		var err error
		body, err = t.doCall(ctx, callName, token, []byte(envelope))
		return err
	})
	return body, err
}

func (t *TradingClient) doCall(ctx context.Context, callName, token string, envelope []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.endpoint(), bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("failed to create trading request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("X-EBAY-API-CALL-NAME", callName)
	req.Header.Set("X-EBAY-API-SITEID", t.config.SiteID)
	req.Header.Set("X-EBAY-API-COMPATIBILITY-LEVEL", t.config.Version)
	req.Header.Set("X-EBAY-API-IAF-TOKEN", token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Message: "trading call " + callName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Message: "failed to read trading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewAPIError(resp.StatusCode, body, "")
	}

	// The Trading API reports failures inside a 200 response.
	var ack tradingAck
	if err := xml.Unmarshal(body, &ack); err != nil {
		return nil, &NetworkError{Message: "failed to decode trading response", Err: err}
	}
	if ack.Ack == "Failure" || ack.Ack == "PartialFailure" {
		return nil, tradingError(callName, ack.Errors)
	}

	t.logger.Debug().Str("call", callName).Str("ack", ack.Ack).Msg("trading API call")
	return body, nil
}

// tradingError converts Trading API error entries into the shared typed
// error taxonomy. Error 10007 is the platform's generic internal error
// and is transient in the sandbox.
func tradingError(callName string, details []tradingErrorDetail) error {
	message := fmt.Sprintf("trading call %s failed", callName)
	category := CategoryUnknown
	apiDetails := make([]ErrorDetail, 0, len(details))

	for i, d := range details {
		msg := d.ShortMessage
		if d.LongMessage != "" && d.LongMessage != d.ShortMessage {
			msg = msg + ": " + d.LongMessage
		}
		if i == 0 && msg != "" {
			message = msg
		}
		apiDetails = append(apiDetails, ErrorDetail{
			Message:     d.ShortMessage,
			LongMessage: d.LongMessage,
			Domain:      "trading",
		})
		if d.ErrorCode == "10007" {
			category = CategoryServer
		}
	}

	return &APIError{
		StatusCode: http.StatusOK,
		Category:   category,
		Message:    message,
		Errors:     apiDetails,
	}
}
