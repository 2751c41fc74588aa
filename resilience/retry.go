package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig configures exponential backoff with jitter.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	ExponentialBase  float64
	Jitter           bool
	IsRetryable      func(error) bool
}

// DefaultRetryConfig matches the values in the original retry policy:
// 5 retries, 1s base, 60s cap, base 2.0, jittered.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      5,
		BaseDelay:       1 * time.Second,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          true,
		IsRetryable:     IsTransientTransportError,
	}
}

// IsTransientTransportError whitelists the error kinds eligible for retry:
// connection, timeout, and transport errors. Everything else propagates on
// the first failure (§7 taxonomy: only "transient transport" is retried).
func IsTransientTransportError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// CalculateBackoffDelay computes delay(attempt) = min(base * expBase^attempt, max),
// optionally sampled uniformly in [0, delay] when jitter is enabled.
func CalculateBackoffDelay(attempt int, cfg RetryConfig) time.Duration {
	raw := float64(cfg.BaseDelay) * math.Pow(cfg.ExponentialBase, float64(attempt))
	delay := time.Duration(math.Min(raw, float64(cfg.MaxDelay)))
	if cfg.Jitter {
		if delay <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(delay) + 1))
	}
	return delay
}

// Do runs fn, retrying on retryable errors up to cfg.MaxRetries times with
// backoff between attempts. The last error is returned after exhaustion.
func Do(ctx context.Context, operationName string, cfg RetryConfig, fn func(context.Context) error) error {
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = IsTransientTransportError
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := CalculateBackoffDelay(attempt, cfg)
		log.Warn().
			Str("operation", operationName).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(lastErr).
			Msg("🔁 retrying after transient error")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
