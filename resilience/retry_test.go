package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RateLimitFloor:    2 * time.Millisecond,
	}
}

func TestExecute_SucceedsOnAttemptWithinBudget(t *testing.T) {
	h := NewHarness(fastConfig(), nil)
	attempts := 0

	result, err := Execute(context.Background(), h, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("timeout waiting for upstream")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestExecute_ExhaustsBudgetOnPersistentFailure(t *testing.T) {
	h := NewHarness(fastConfig(), nil)
	attempts := 0

	_, err := Execute(context.Background(), h, func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("connection reset")
	})

	require.Error(t, err)
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1+fastConfig().MaxRetries, re.Attempts)
	assert.Equal(t, 1+fastConfig().MaxRetries, attempts)
}

func TestExecute_NonRetriableFailsImmediately(t *testing.T) {
	h := NewHarness(fastConfig(), nil)
	attempts := 0

	_, err := Execute(context.Background(), h, func(ctx context.Context) (string, error) {
		attempts++
		return "", errors.New("invalid api key")
	})

	require.Error(t, err)
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Attempts)
	assert.Equal(t, 1, attempts)
}

func TestExecute_RespectsContextCancellation(t *testing.T) {
	h := NewHarness(fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, h, func(ctx context.Context) (string, error) {
		return "", errors.New("network unreachable")
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestHarness_StatsSnapshot(t *testing.T) {
	h := NewHarness(fastConfig(), nil)

	_, _ = Execute(context.Background(), h, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	_, _ = Execute(context.Background(), h, func(ctx context.Context) (string, error) {
		return "", errors.New("invalid api key")
	})

	snap := h.Stats()
	assert.GreaterOrEqual(t, snap.TotalAttempts, int64(2))
	assert.Equal(t, int64(1), snap.FailuresByKind[core.KindAuthenticationFailure])
}
