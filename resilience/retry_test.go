package resilience

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RetriesOnlyRetryableErrors(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.MaxRetries = 3

	attempts := 0
	err := Do(context.Background(), "test-op", cfg, func(context.Context) error {
		attempts++
		return errors.New("business rule violation")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "non-retryable error must not be retried")
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	cfg := DefaultRetryConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.MaxRetries = 5

	attempts := 0
	transient := &net.DNSError{IsTimeout: true}
	err := Do(context.Background(), "test-op", cfg, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCalculateBackoffDelay_RespectsMaxDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: 3 * time.Second, ExponentialBase: 2.0, Jitter: false}
	d := CalculateBackoffDelay(10, cfg)
	assert.Equal(t, 3*time.Second, d)
}
