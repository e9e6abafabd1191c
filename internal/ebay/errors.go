// Package ebay implements the eBay REST integration core: OAuth token
// lifecycle management, a resilient REST client, retry policy, and typed
// error classification.
package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorCategory classifies an API failure for retry and caller decisions.
type ErrorCategory string

const (
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryValidation     ErrorCategory = "validation"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryServer         ErrorCategory = "server_error"
	CategoryNetwork        ErrorCategory = "network"
	CategoryUnknown        ErrorCategory = "unknown"
)

// ErrorDetail is a single error entry in an eBay REST error body.
type ErrorDetail struct {
	ErrorID     int    `json:"errorId,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Category    string `json:"category,omitempty"`
	Message     string `json:"message"`
	LongMessage string `json:"longMessage,omitempty"`
}

// apiErrorBody is the eBay REST error response shape.
type apiErrorBody struct {
	Errors  []ErrorDetail `json:"errors"`
	Message string        `json:"message"`
}

// APIError represents a non-2xx response from the eBay platform.
type APIError struct {
	StatusCode int
	RequestID  string
	Category   ErrorCategory
	Message    string
	Errors     []ErrorDetail
}

func (e *APIError) Error() string {
	return fmt.Sprintf("eBay API error: %s (status: %d, category: %s)", e.Message, e.StatusCode, e.Category)
}

// Retryable reports whether the failure is worth retrying. Server errors
// and platform rate limiting are; the rest of the 4xx range is not.
func (e *APIError) Retryable() bool {
	switch e.Category {
	case CategoryServer, CategoryRateLimit, CategoryNetwork:
		return true
	}
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict:
		return true
	}
	return false
}

// NewAPIError classifies a non-2xx platform response into a typed error.
// The message concatenates the platform's short and long messages when
// both are present.
func NewAPIError(statusCode int, body []byte, requestID string) *APIError {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	details := parsed.Errors
	if len(details) == 0 && parsed.Message != "" {
		details = []ErrorDetail{{Message: parsed.Message}}
	}

	message := fmt.Sprintf("HTTP %d error", statusCode)
	if len(details) > 0 {
		message = details[0].Message
		if details[0].LongMessage != "" && details[0].LongMessage != details[0].Message {
			message = message + ": " + details[0].LongMessage
		}
	} else if len(body) > 0 {
		message = strings.TrimSpace(string(body))
	}

	return &APIError{
		StatusCode: statusCode,
		RequestID:  requestID,
		Category:   classifyStatus(statusCode, details),
		Message:    message,
		Errors:     details,
	}
}

// classifyStatus maps a status code (and error domain, when present) to a
// category.
func classifyStatus(statusCode int, details []ErrorDetail) ErrorCategory {
	if len(details) > 0 {
		domain := strings.ToLower(details[0].Domain)
		if strings.Contains(domain, "auth") {
			if statusCode == http.StatusUnauthorized {
				return CategoryAuthentication
			}
			return CategoryAuthorization
		}
	}

	switch statusCode {
	case http.StatusBadRequest:
		return CategoryValidation
	case http.StatusUnauthorized:
		return CategoryAuthentication
	case http.StatusForbidden:
		return CategoryAuthorization
	case http.StatusNotFound:
		return CategoryNotFound
	case http.StatusTooManyRequests:
		return CategoryRateLimit
	}
	if statusCode >= 500 {
		return CategoryServer
	}
	return CategoryUnknown
}

// ConfigurationError reports missing or invalid credentials. Fatal, never
// retried.
type ConfigurationError struct {
	Message       string
	MissingFields []string
}

func (e *ConfigurationError) Error() string {
	if len(e.MissingFields) > 0 {
		return fmt.Sprintf("%s (missing: %s)", e.Message, strings.Join(e.MissingFields, ", "))
	}
	return e.Message
}

// ConsentRequiredError signals that a delegated-scope call needs user
// authorization. It carries everything the caller needs to prompt a human:
// the missing scopes and a ready-to-use authorization URL. Callers are
// expected to branch on it with errors.As, not treat it as a failure.
type ConsentRequiredError struct {
	MissingScopes    []string
	AuthorizationURL string
}

func (e *ConsentRequiredError) Error() string {
	return fmt.Sprintf("user consent required for scopes: %s", strings.Join(e.MissingScopes, " "))
}

// AuthenticationError reports invalid client credentials or an invalid or
// expired token. Never retried.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Message
}

// ValidationError reports malformed caller input, such as a consent
// callback URL missing its code or an unrecognized scope string.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// RateLimitError reports an exhausted daily budget or platform-side rate
// limiting. Retryable with an extended backoff floor.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded: " + e.Message
}

// NetworkError wraps a transport-level failure: connection errors, resets,
// timeouts. Always retryable.
type NetworkError struct {
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Err)
	}
	return "network error: " + e.Message
}

func (e *NetworkError) Unwrap() error { return e.Err }

// classifyTokenError turns a non-2xx token-endpoint response into a typed
// error using the OAuth {error, error_description} body shape.
func classifyTokenError(statusCode int, body []byte) error {
	msg := parseOAuthError(statusCode, body)

	var oauthErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &oauthErr)

	switch {
	case statusCode == http.StatusTooManyRequests || oauthErr.Error == "rate_limit_exceeded":
		return &RateLimitError{Message: msg}
	case oauthErr.Error == "invalid_scope":
		return &ValidationError{Field: "scope", Message: msg}
	case statusCode >= 500:
		return &NetworkError{Message: msg}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnauthorized:
		return &AuthenticationError{Message: msg}
	}
	return &AuthenticationError{Message: msg}
}

// parseOAuthError maps the platform's OAuth error body to a human-readable
// message, falling back to the raw body text for unrecognized shapes.
func parseOAuthError(statusCode int, body []byte) string {
	var oauthErr struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &oauthErr); err == nil {
		switch oauthErr.Error {
		case "invalid_client":
			return "invalid client credentials (check App ID and Cert ID)"
		case "invalid_scope":
			if oauthErr.ErrorDescription != "" {
				return "invalid or unauthorized scope requested: " + oauthErr.ErrorDescription
			}
			return "invalid or unauthorized scope requested"
		case "unsupported_grant_type":
			return "unsupported grant type"
		case "invalid_grant":
			if oauthErr.ErrorDescription != "" {
				return "invalid or expired grant: " + oauthErr.ErrorDescription
			}
			return "invalid or expired grant"
		}
		if statusCode == http.StatusTooManyRequests {
			return "rate limit exceeded for OAuth requests"
		}
		if oauthErr.Error != "" {
			if oauthErr.ErrorDescription != "" {
				return oauthErr.Error + ": " + oauthErr.ErrorDescription
			}
			return oauthErr.Error
		}
	}

	if len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	return fmt.Sprintf("HTTP %d error", statusCode)
}

// IsRetryable reports whether an error is worth retrying: transport
// failures, timeouts, 5xx responses, and rate limiting. Consent,
// validation, authentication, and configuration errors are terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}

	// Raw transport errors that escaped wrapping.
	var timeout net.Error
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}

// IsRateLimited reports whether the failure is rate limiting, which gets a
// longer backoff floor than other transient errors.
func IsRateLimited(err error) bool {
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Category == CategoryRateLimit
	}
	return false
}
