package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// CircuitState is the breaker's current disposition.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned by ExecuteGuarded while the breaker is open.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

// CircuitBreakerConfig configures one breaker instance, typically one per
// model alias so a persistently failing model stops being retried every
// round while the rest of the roster continues (SPEC_FULL §4.1 supplement).
type CircuitBreakerConfig struct {
	Name             string
	ErrorThreshold   float64 // fraction of failures in the window that trips the breaker
	VolumeThreshold  int     // minimum calls observed before ErrorThreshold is evaluated
	SleepWindow      time.Duration
	HalfOpenRequests int
}

func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		ErrorThreshold:   0.5,
		VolumeThreshold:  5,
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// CircuitBreaker is a sliding-window failure tracker. Grounded on the
// teacher's resilience.CircuitBreaker (sliding-window buckets, Closed ->
// Open -> HalfOpen -> Closed state machine, panic-safe Execute), trimmed to
// plain success/failure counters reset on trip instead of a multi-bucket
// time-sliced window: a per-alias breaker sees at most one call per debate
// round, so a finer window buys nothing here.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger core.ComponentAwareLogger

	mu            sync.Mutex
	state         CircuitState
	successes     int
	failures      int
	openedAt      time.Time
	halfOpenInUse int
}

func NewCircuitBreaker(config CircuitBreakerConfig, logger core.ComponentAwareLogger) *CircuitBreaker {
	if logger == nil {
		logger = &noopComponentLogger{}
	}
	return &CircuitBreaker{
		config: config,
		logger: logger.WithComponent("engine/circuit-breaker").(core.ComponentAwareLogger),
		state:  StateClosed,
	}
}

// CanExecute reports whether a call should be attempted right now,
// transitioning Open -> HalfOpen once the sleep window has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.SleepWindow {
			cb.state = StateHalfOpen
			cb.halfOpenInUse = 0
			return cb.admitHalfOpenLocked()
		}
		return false
	case StateHalfOpen:
		return cb.admitHalfOpenLocked()
	default:
		return true
	}
}

func (cb *CircuitBreaker) admitHalfOpenLocked() bool {
	if cb.halfOpenInUse >= cb.config.HalfOpenRequests {
		return false
	}
	cb.halfOpenInUse++
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.successes = 0
		cb.failures = 0
		cb.logger.Info("circuit closed after recovery probe", map[string]interface{}{"name": cb.config.Name})
		return
	}
	cb.successes++
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.trip()
		return
	}

	cb.failures++
	total := cb.successes + cb.failures
	if total >= cb.config.VolumeThreshold {
		rate := float64(cb.failures) / float64(total)
		if rate >= cb.config.ErrorThreshold {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
	cb.failures = 0
	cb.logger.Warn("circuit tripped open", map[string]interface{}{"name": cb.config.Name})
}

// State returns the breaker's current state (for inspection/tests).
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ExecuteGuarded runs fn only if the breaker admits the call, recovering any
// panic into an error result rather than letting it escape, and records the
// outcome. No lock is held across the fn call itself.
func ExecuteGuarded[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !cb.CanExecute() {
		return zero, ErrCircuitOpen
	}

	result, err := runRecovered(ctx, fn)
	if err != nil {
		cb.RecordFailure()
		return zero, err
	}
	cb.RecordSuccess()
	return result, nil
}

func runRecovered[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
