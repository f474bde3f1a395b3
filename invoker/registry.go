package invoker

import (
	"sort"
	"sync"

	"github.com/gomind-labs/debate-consensus/core"
)

// Registry holds the immutable process-wide alias → capability mapping.
// Grounded on ai/registry.go's provider registry, trimmed from a
// multi-provider discovery structure down to the fixed roster the
// deliberation engine configures at startup.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[core.ModelAlias]core.ProviderCapability
}

func NewRegistry() *Registry {
	return &Registry{capabilities: make(map[core.ModelAlias]core.ProviderCapability)}
}

// Register adds or replaces alias's capability. Intended to run once at
// startup before any debate begins; the mapping is treated as immutable
// for the rest of the process's life per spec.md §3.
func (r *Registry) Register(pc core.ProviderCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[pc.Alias] = pc
}

func (r *Registry) Lookup(alias core.ModelAlias) (core.ProviderCapability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pc, ok := r.capabilities[alias]
	return pc, ok
}

// Aliases returns every registered alias in insertion-independent, stable
// (alphabetical) order for deterministic roster construction.
func (r *Registry) Aliases() []core.ModelAlias {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ModelAlias, 0, len(r.capabilities))
	for a := range r.capabilities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ByRole returns every alias registered under the given role.
func (r *Registry) ByRole(role core.Role) []core.ModelAlias {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.ModelAlias
	for alias, pc := range r.capabilities {
		if pc.Role == role {
			out = append(out, alias)
		}
	}
	return out
}
