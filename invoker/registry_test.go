package invoker

import (
	"testing"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_LookupAndAliases(t *testing.T) {
	r := NewRegistry()
	r.Register(core.ProviderCapability{Alias: "k3", Role: core.RoleDebater})
	r.Register(core.ProviderCapability{Alias: "k1", Role: core.RoleCoordinator})
	r.Register(core.ProviderCapability{Alias: "k2", Role: core.RoleDebater})

	pc, ok := r.Lookup("k1")
	assert.True(t, ok)
	assert.Equal(t, core.RoleCoordinator, pc.Role)

	_, ok = r.Lookup("k9")
	assert.False(t, ok)

	assert.Equal(t, []core.ModelAlias{"k1", "k2", "k3"}, r.Aliases())
}

func TestRegistry_ByRole(t *testing.T) {
	r := NewRegistry()
	r.Register(core.ProviderCapability{Alias: "k1", Role: core.RoleDebater})
	r.Register(core.ProviderCapability{Alias: "k2", Role: core.RoleCoordinator})

	coords := r.ByRole(core.RoleCoordinator)
	assert.Equal(t, []core.ModelAlias{"k2"}, coords)
}
