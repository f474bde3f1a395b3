package invoker

import (
	"context"
	"sync"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/resilience"
)

// Invoker is the Model Invoker: "send prompt to model alias, get text back",
// the single primitive the Orchestrator drives. Every call is wrapped by a
// per-alias circuit breaker and, when the caller opts in, the Retry Harness.
type Invoker struct {
	transport Transport
	registry  *Registry
	harness   *resilience.Harness
	logger    core.ComponentAwareLogger

	mu          sync.Mutex
	breakers    map[core.ModelAlias]*resilience.CircuitBreaker
	callTimeout time.Duration
}

// New builds an Invoker. harness may be nil; when nil, calls are not retried
// (the Orchestrator already tolerates a null return by skipping the model
// for the round, so retrying is optional per spec.md §4.3).
func New(transport Transport, registry *Registry, harness *resilience.Harness, logger core.ComponentAwareLogger) *Invoker {
	return &Invoker{
		transport:   transport,
		registry:    registry,
		harness:     harness,
		logger:      logger,
		breakers:    make(map[core.ModelAlias]*resilience.CircuitBreaker),
		callTimeout: DefaultCallTimeout,
	}
}

func (inv *Invoker) breakerFor(alias core.ModelAlias) *resilience.CircuitBreaker {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	cb, ok := inv.breakers[alias]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig(string(alias)), inv.logger)
		inv.breakers[alias] = cb
	}
	return cb
}

// CallModel sends prompt to alias and returns its text response, or ("", nil)
// if the model did not contribute this round. A non-nil error means the
// Orchestrator should treat the call as failed rather than silently absent
// (used by the retry harness's classification, not surfaced to the
// debate's positions map).
func (inv *Invoker) CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	if _, ok := inv.registry.Lookup(alias); !ok {
		return "", core.NewEngineError("invoker.CallModel", core.KindConfiguration, core.ErrMissingConfiguration)
	}

	cb := inv.breakerFor(alias)

	callCtx, cancel := context.WithTimeout(ctx, inv.callTimeout)
	defer cancel()

	attempt := func(ctx context.Context) (string, error) {
		return resilience.ExecuteGuarded(ctx, cb, func(ctx context.Context) (string, error) {
			return inv.transport.Send(ctx, alias, prompt, projectPath)
		})
	}

	if inv.harness == nil {
		return attempt(callCtx)
	}
	return resilience.Execute(callCtx, inv.harness, attempt)
}
