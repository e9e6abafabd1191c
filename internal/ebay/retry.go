package ebay

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/lootly/lootly/internal/common"
)

// rateLimitDelayFloor is the minimum wait before retrying a rate-limited
// call, regardless of how early in the backoff schedule it occurs.
const rateLimitDelayFloor = 10 * time.Second

// RetryConfig tunes the shared exponential-backoff executor. Both the
// OAuth manager's token-endpoint calls and the REST client's API calls
// run through the same policy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool

	// OnRetry is invoked before each backoff sleep so operators can
	// distinguish flaky-sandbox retries from genuine outages.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the sandbox-tuned defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Jitter:      true,
	}
}

// delayFor computes the backoff before the next attempt: exponential with
// a ceiling, a raised floor for rate limiting, and optional jitter.
func (c RetryConfig) delayFor(attempt int, err error) time.Duration {
	base := c.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	delay := base << (attempt - 1)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	if IsRateLimited(err) && delay < rateLimitDelayFloor {
		delay = rateLimitDelayFloor
	}
	if c.Jitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()))
	}
	return delay
}

// Retry executes op until it succeeds, fails with a non-retryable error,
// or attempts run out. The last error propagates unchanged. Context
// cancellation aborts the backoff wait.
func Retry(ctx context.Context, logger *common.Logger, cfg RetryConfig, op func() error) error {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			logger.Error().Int("attempts", attempts).Err(lastErr).Msg("retries exhausted")
			return lastErr
		}

		delay := cfg.delayFor(attempt, lastErr)
		logger.Warn().
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("delay", delay).
			Err(lastErr).
			Msg("retrying after transient failure")

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, lastErr)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
