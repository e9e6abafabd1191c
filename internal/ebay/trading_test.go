package ebay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func fastTradingConfig(baseURL string) TradingConfig {
	return TradingConfig{
		BaseURL: baseURL,
		Retry:   RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
}

func TestTradingClient_CallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-EBAY-API-CALL-NAME") != "GeteBayOfficialTime" {
			t.Errorf("call name header = %q", r.Header.Get("X-EBAY-API-CALL-NAME"))
		}
		if r.Header.Get("X-EBAY-API-IAF-TOKEN") != "static-token" {
			t.Errorf("IAF token header = %q", r.Header.Get("X-EBAY-API-IAF-TOKEN"))
		}
		if r.Header.Get("X-EBAY-API-SITEID") != DefaultTradingSiteID {
			t.Errorf("site id header = %q", r.Header.Get("X-EBAY-API-SITEID"))
		}
		if r.Header.Get("X-EBAY-API-COMPATIBILITY-LEVEL") != DefaultTradingVersion {
			t.Errorf("compatibility header = %q", r.Header.Get("X-EBAY-API-COMPATIBILITY-LEVEL"))
		}

		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "<GeteBayOfficialTimeRequest xmlns=\"urn:ebay:apis:eBLBaseComponents\">") {
			t.Errorf("request envelope = %s", body)
		}

		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><GeteBayOfficialTimeResponse xmlns="urn:ebay:apis:eBLBaseComponents"><Ack>Success</Ack><Timestamp>2026-01-01T00:00:00.000Z</Timestamp></GeteBayOfficialTimeResponse>`))
	}))
	defer srv.Close()

	client := NewTradingClient(&fakeTokenSource{}, fastTradingConfig(srv.URL), nil)
	body, err := client.Call(context.Background(), "GeteBayOfficialTime", "")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if !strings.Contains(string(body), "<Timestamp>") {
		t.Errorf("response body = %s", body)
	}
}

func TestTradingClient_FailureAckBecomesAPIError(t *testing.T) {
	var requests int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.Write([]byte(`<?xml version="1.0"?><AddItemResponse xmlns="urn:ebay:apis:eBLBaseComponents"><Ack>Failure</Ack><Errors><ShortMessage>Invalid category.</ShortMessage><LongMessage>The category is not valid.</LongMessage><ErrorCode>87</ErrorCode><SeverityCode>Error</SeverityCode></Errors></AddItemResponse>`))
	}))
	defer srv.Close()

	client := NewTradingClient(&fakeTokenSource{}, fastTradingConfig(srv.URL), nil)
	_, err := client.Call(context.Background(), "AddItem", "<Item></Item>")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("got %T, want *APIError", err)
	}
	if apiErr.Message != "Invalid category.: The category is not valid." {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Retryable() {
		t.Error("a business-rule failure must not be retryable")
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1", requests)
	}
}

func TestTradingClient_InternalErrorIsRetried(t *testing.T) {
	var requests int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n == 1 {
			w.Write([]byte(`<?xml version="1.0"?><GetMyeBaySellingResponse xmlns="urn:ebay:apis:eBLBaseComponents"><Ack>Failure</Ack><Errors><ShortMessage>Internal error to the application.</ShortMessage><ErrorCode>10007</ErrorCode><SeverityCode>Error</SeverityCode></Errors></GetMyeBaySellingResponse>`))
			return
		}
		w.Write([]byte(`<?xml version="1.0"?><GetMyeBaySellingResponse xmlns="urn:ebay:apis:eBLBaseComponents"><Ack>Success</Ack></GetMyeBaySellingResponse>`))
	}))
	defer srv.Close()

	client := NewTradingClient(&fakeTokenSource{}, fastTradingConfig(srv.URL), nil)
	_, err := client.Call(context.Background(), "GetMyeBaySelling", "")
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2 (platform internal error retried)", requests)
	}
}

func TestTradingClient_ConsentRequiredPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no HTTP request should be made when consent is missing")
	}))
	defer srv.Close()

	want := &ConsentRequiredError{MissingScopes: []string{ScopeSellAccount}}
	client := NewTradingClient(&fakeTokenSource{err: want}, fastTradingConfig(srv.URL), nil)

	_, err := client.Call(context.Background(), "GetMyeBaySelling", "")

	var consentErr *ConsentRequiredError
	if !errors.As(err, &consentErr) {
		t.Fatalf("got %T, want *ConsentRequiredError", err)
	}
}
