package ebay

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, fastRetryConfig(3), func() error {
		calls++
		if calls < 3 {
			return &NetworkError{Message: "connection reset"}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Retry returned error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := &NetworkError{Message: "still down"}
	err := Retry(context.Background(), nil, fastRetryConfig(2), func() error {
		calls++
		return wantErr
	})

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("got %T, want the last *NetworkError unchanged", err)
	}
}

func TestRetry_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, fastRetryConfig(5), func() error {
		calls++
		return &AuthenticationError{Message: "invalid credentials"}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", calls)
	}
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("got %T, want *AuthenticationError", err)
	}
}

func TestRetry_ContextCancelAbortsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour}
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, nil, cfg, func() error {
			calls++
			return &NetworkError{Message: "flaky"}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Retry did not return after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetryConfig(3)
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	_ = Retry(context.Background(), nil, cfg, func() error {
		return &NetworkError{Message: "down"}
	})

	// Retries happen after attempts 1 and 2; the final attempt gets none.
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestDelayFor_ExponentialWithCeiling(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second}
	err := &NetworkError{Message: "down"}

	if d := cfg.delayFor(1, err); d != time.Second {
		t.Errorf("attempt 1 delay = %v, want 1s", d)
	}
	if d := cfg.delayFor(2, err); d != 2*time.Second {
		t.Errorf("attempt 2 delay = %v, want 2s", d)
	}
	if d := cfg.delayFor(3, err); d != 4*time.Second {
		t.Errorf("attempt 3 delay = %v, want 4s", d)
	}
	if d := cfg.delayFor(4, err); d != 5*time.Second {
		t.Errorf("attempt 4 delay = %v, want the 5s ceiling", d)
	}
}

func TestDelayFor_RateLimitFloor(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 60 * time.Second}

	if d := cfg.delayFor(1, &RateLimitError{Message: "throttled"}); d != rateLimitDelayFloor {
		t.Errorf("rate-limited attempt 1 delay = %v, want %v floor", d, rateLimitDelayFloor)
	}

	// A later attempt already above the floor keeps its exponential delay.
	if d := cfg.delayFor(5, &RateLimitError{Message: "throttled"}); d != 16*time.Second {
		t.Errorf("rate-limited attempt 5 delay = %v, want 16s", d)
	}
}

func TestDelayFor_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 60 * time.Second, Jitter: true}
	err := &NetworkError{Message: "down"}

	for i := 0; i < 50; i++ {
		d := cfg.delayFor(2, err)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("jittered delay %v outside [1s, 3s] for a 2s base", d)
		}
	}
}
