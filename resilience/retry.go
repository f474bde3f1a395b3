package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// RetryConfig configures the harness's attempt budget and backoff pacing.
// Grounded on the teacher's resilience.RetryConfig, extended with the
// rate-limit-specific multiplier and floor spec.md §4.1 requires.
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	RateLimitFloor    time.Duration
}

// DefaultRetryConfig mirrors the teacher's sensible defaults, adjusted to
// this engine's default MaxRetries of 3 (spec.md §6 MAX_RETRIES default).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		RateLimitFloor:    5 * time.Second,
	}
}

// ConfigFromCore builds a RetryConfig from core.Config's retry fields.
func ConfigFromCore(cfg *core.Config) RetryConfig {
	return RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      cfg.InitialRetryDelay,
		MaxDelay:          cfg.MaxRetryDelay,
		BackoffMultiplier: cfg.BackoffMultiplier,
		RateLimitFloor:    5 * time.Second,
	}
}

// Stats tracks cumulative harness activity across all Execute calls sharing
// one Harness, using atomic counters so publication is a consistent
// snapshot read without a contended lock.
type Stats struct {
	totalAttempts   int64
	totalSuccesses  int64
	totalFailures   int64
	retryCountSum   int64
	maxRetryCount   int64
	kindFailures    sync.Map // core.ErrorKind -> *int64
}

// StatsSnapshot is a point-in-time read of Stats.
type StatsSnapshot struct {
	TotalAttempts  int64
	SuccessRate    float64
	AverageRetries float64
	MaxRetries     int64
	FailuresByKind map[core.ErrorKind]int64
}

func (s *Stats) snapshot() StatsSnapshot {
	total := atomic.LoadInt64(&s.totalAttempts)
	successes := atomic.LoadInt64(&s.totalSuccesses)
	var rate float64
	calls := atomic.LoadInt64(&s.totalSuccesses) + atomic.LoadInt64(&s.totalFailures)
	if calls > 0 {
		rate = float64(successes) / float64(calls)
	}
	var avgRetries float64
	if calls > 0 {
		avgRetries = float64(atomic.LoadInt64(&s.retryCountSum)) / float64(calls)
	}
	byKind := make(map[core.ErrorKind]int64)
	s.kindFailures.Range(func(k, v interface{}) bool {
		byKind[k.(core.ErrorKind)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return StatsSnapshot{
		TotalAttempts:  total,
		SuccessRate:    rate,
		AverageRetries: avgRetries,
		MaxRetries:     atomic.LoadInt64(&s.maxRetryCount),
		FailuresByKind: byKind,
	}
}

func (s *Stats) recordFailureKind(kind core.ErrorKind) {
	v, _ := s.kindFailures.LoadOrStore(kind, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// RetryError is returned when a call exhausts its retry budget. It carries
// enough context for the caller to surface a structured failure per
// spec.md §7.
type RetryError struct {
	Classification Classification
	Attempts       int
	Err            error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("exhausted %d attempts (kind=%s): %v", e.Attempts, e.Classification.Kind, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

// Harness applies a completion function with bounded, classified retries.
// fn is invoked at most 1+MaxRetries times; between attempts the harness
// sleeps min(MaxDelay, InitialDelay*Multiplier^(attempt-1)) plus uniform
// jitter in ±10% of that delay. Rate-limit failures receive an additional
// 2x multiplier and a floor (RateLimitFloor).
type Harness struct {
	config RetryConfig
	stats  Stats
	logger core.ComponentAwareLogger
}

// NewHarness constructs a Harness. A nil logger defaults to core.NoOpLogger.
func NewHarness(config RetryConfig, logger core.ComponentAwareLogger) *Harness {
	if logger == nil {
		logger = &noopComponentLogger{}
	}
	return &Harness{config: config, logger: logger.WithComponent("engine/retry").(core.ComponentAwareLogger)}
}

// Stats returns a consistent snapshot of this harness's cumulative activity.
func (h *Harness) Stats() StatsSnapshot { return h.stats.snapshot() }

// Execute runs fn, retrying on retriable classified failures. Every
// suspension (the backoff sleep) releases no lock held by the caller — the
// harness itself holds none.
func Execute[T any](ctx context.Context, h *Harness, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	var lastClass Classification
	delay := h.config.InitialDelay
	maxAttempts := 1 + h.config.MaxRetries

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		atomic.AddInt64(&h.stats.totalAttempts, 1)
		result, err := fn(ctx)
		if err == nil {
			atomic.AddInt64(&h.stats.totalSuccesses, 1)
			recordRetryCount(&h.stats, attempt-1)
			return result, nil
		}

		lastErr = err
		lastClass = Classify(err)

		if !lastClass.Retriable {
			atomic.AddInt64(&h.stats.totalFailures, 1)
			h.stats.recordFailureKind(lastClass.Kind)
			return zero, &RetryError{Classification: lastClass, Attempts: attempt, Err: err}
		}

		if attempt == maxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * h.config.BackoffMultiplier)
		}
		if delay > h.config.MaxDelay {
			delay = h.config.MaxDelay
		}
		sleepFor := delay
		if lastClass.Kind == core.KindRateLimited {
			sleepFor *= 2
			if sleepFor < h.config.RateLimitFloor {
				sleepFor = h.config.RateLimitFloor
			}
		}
		jitter := time.Duration(float64(sleepFor) * 0.1 * (2*rand.Float64() - 1))
		sleepFor += jitter
		if sleepFor < 0 {
			sleepFor = 0
		}

		h.logger.Debug("retrying after classified failure", map[string]interface{}{
			"attempt": attempt, "kind": lastClass.Kind, "sleep_ms": sleepFor.Milliseconds(),
		})

		timer := time.NewTimer(sleepFor)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	atomic.AddInt64(&h.stats.totalFailures, 1)
	h.stats.recordFailureKind(lastClass.Kind)
	recordRetryCount(&h.stats, maxAttempts-1)
	return zero, &RetryError{Classification: lastClass, Attempts: maxAttempts, Err: lastErr}
}

func recordRetryCount(s *Stats, retries int) {
	atomic.AddInt64(&s.retryCountSum, int64(retries))
	for {
		cur := atomic.LoadInt64(&s.maxRetryCount)
		if int64(retries) <= cur || atomic.CompareAndSwapInt64(&s.maxRetryCount, cur, int64(retries)) {
			return
		}
	}
}

type noopComponentLogger struct{ core.NoOpLogger }

func (n *noopComponentLogger) WithComponent(string) core.Logger { return n }
