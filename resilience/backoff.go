package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffStrategy computes the next retry delay given the attempt number
// (1-based, the attempt that just failed). Harness's own exponential+jitter
// loop is the default; AlternateBackoff below is a second implementation
// wired in per SPEC_FULL §2's domain-stack table so the pacing can be
// swapped without touching Execute's retry-budget/classification logic.
type BackoffStrategy func(ctx context.Context, attempt int) (time.Duration, bool)

// ExponentialBackoffV5 adapts cenkalti/backoff/v5's exponential policy to
// BackoffStrategy's signature, as an operator-selectable alternate to the
// harness's hand-rolled pacing.
func ExponentialBackoffV5(initial, max time.Duration) BackoffStrategy {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initial
	policy.MaxInterval = max

	return func(ctx context.Context, attempt int) (time.Duration, bool) {
		d := policy.NextBackOff()
		if d == backoff.Stop {
			return 0, false
		}
		return d, true
	}
}
