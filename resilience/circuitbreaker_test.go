package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_Recovery(t *testing.T) {
	// Scenario 6: threshold=3, recovery_timeout=30ms.
	cb := NewCircuitBreaker("broker", 3, 30*time.Millisecond)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	}
	assert.Equal(t, Closed, cb.State(), "still closed at threshold-1 failures")

	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, Open, cb.State())

	err := cb.Call(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen, "immediate call must fail fast")

	time.Sleep(35 * time.Millisecond)

	err = cb.Call(context.Background(), func(context.Context) error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
	assert.Equal(t, 0, cb.FailureCount())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("broker", 1, 10*time.Millisecond)
	boom := errors.New("timeout")

	_ = cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.Equal(t, Open, cb.State())

	time.Sleep(15 * time.Millisecond)

	err := cb.Call(context.Background(), func(context.Context) error { return boom })
	assert.Error(t, err)
	assert.Equal(t, Open, cb.State(), "failed probe must reopen, not stay half-open")
}
