package selection

import (
	"testing"

	"github.com/gomind-labs/debate-consensus/core"
	"github.com/stretchr/testify/assert"
)

func TestPolicy_ExplicitPresetShortCircuitsAutomaticSelection(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("does not matter", PresetRapid, 0, 0, Overrides{})
	assert.Equal(t, PresetRapid, d.Preset)
}

func TestPolicy_SecurityKeywordsWinOverEverythingElse(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("is there a CSRF vulnerability in this login flow?", "", 0.9, 0.1, Overrides{})
	assert.Equal(t, PresetSecurityFocused, d.Preset)
}

func TestPolicy_UrgencyOverridesCostBudget(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("design a new caching layer", "", 0.95, 0.1, Overrides{})
	assert.Equal(t, PresetRapid, d.Preset)
}

func TestPolicy_LowBudgetSelectsCostOptimized(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("design a new caching layer", "", 0.1, 0.2, Overrides{})
	assert.Equal(t, PresetCostOptimized, d.Preset)
}

func TestPolicy_HighComplexityAndCriticalitySelectsMaximumAccuracy(t *testing.T) {
	p := NewPolicy(NewCatalog())
	question := "we need a production migration plan for the distributed multi-region payment ledger, data loss is unacceptable here, " +
		"please think through every architecture tradeoff in detail across all affected downstream services and compliance boundaries " +
		"given the irreversible nature of this change and the legal exposure if it goes wrong during the migration window"
	d := p.Select(question, "", 0, 0.9, Overrides{})
	assert.Equal(t, PresetMaximumAccuracy, d.Preset)
}

func TestPolicy_HighComplexityAloneSelectsDeepAnalysis(t *testing.T) {
	p := NewPolicy(NewCatalog())
	question := "walk through the full distributed systems architecture tradeoffs for a multi-region rollout " + repeatWords(130)
	d := p.Select(question, "", 0, 0.9, Overrides{})
	assert.Equal(t, PresetDeepAnalysis, d.Preset)
}

func TestPolicy_LowComplexitySelectsRapid(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("quick typo fix in the docs", "", 0, 0.9, Overrides{})
	assert.Equal(t, PresetRapid, d.Preset)
}

func TestPolicy_DefaultsToBalanced(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.Select("what approach should we take here", "", 0, 0.9, Overrides{})
	assert.Equal(t, PresetBalanced, d.Preset)
}

func TestPolicy_CategorizerFailureDefaultsToBalanced(t *testing.T) {
	p := NewPolicy(NewCatalog())
	d := p.automatic(Categorization{}, 0, 0)
	assert.Equal(t, PresetBalanced, d.Preset)
}

func TestPolicy_OverridesWinOverSelection(t *testing.T) {
	p := NewPolicy(NewCatalog())
	override := core.Roster{{Alias: "k9"}}
	d := p.Select("quick typo fix", "", 0, 0, Overrides{Roster: override, MaxRounds: 9, ConsensusThreshold: 42})
	assert.Equal(t, override, d.Roster)
	assert.Equal(t, 9, d.MaxRounds)
	assert.Equal(t, 42, d.ConsensusThreshold)
}

func repeatWords(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += "word "
	}
	return out
}
