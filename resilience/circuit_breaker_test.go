package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsAfterThresholdBreaches(t *testing.T) {
	cfg := CircuitBreakerConfig{Name: "k1", ErrorThreshold: 0.5, VolumeThreshold: 4, SleepWindow: 50 * time.Millisecond, HalfOpenRequests: 1}
	cb := NewCircuitBreaker(cfg, nil)

	for i := 0; i < 4; i++ {
		assert.True(t, cb.CanExecute())
		cb.RecordFailure()
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cfg := CircuitBreakerConfig{Name: "k1", ErrorThreshold: 0.5, VolumeThreshold: 2, SleepWindow: 10 * time.Millisecond, HalfOpenRequests: 1}
	cb := NewCircuitBreaker(cfg, nil)

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.CanExecute())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecuteGuarded_RecoversPanic(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("k1"), nil)

	_, err := ExecuteGuarded(context.Background(), cb, func(ctx context.Context) (string, error) {
		panic("boom")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered")
}

func TestExecuteGuarded_RejectsWhenOpen(t *testing.T) {
	cfg := CircuitBreakerConfig{Name: "k1", ErrorThreshold: 0.1, VolumeThreshold: 1, SleepWindow: time.Hour, HalfOpenRequests: 1}
	cb := NewCircuitBreaker(cfg, nil)
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	_, err := ExecuteGuarded(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "should not run", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
