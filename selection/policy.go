package selection

import (
	"github.com/gomind-labs/debate-consensus/core"
)

// Overrides are caller-supplied values that take precedence over whatever
// the preset or automatic selection would otherwise pick.
type Overrides struct {
	Roster             core.Roster
	MaxRounds          int
	ConsensusThreshold int
}

// Decision is the Selection Policy's output: a concrete roster, round
// budget, and consensus threshold, plus the reasoning trail for
// analyze_question_for_preset.
type Decision struct {
	Preset             string
	Roster             core.Roster
	MaxRounds          int
	ConsensusThreshold int
	Categorization     Categorization
	Reason             string
}

// Policy selects a roster and round budget for a question. When preset is
// non-empty it is looked up directly; otherwise the question is categorized
// and routed through the automatic-selection rule order. Overrides always
// win over whatever the preset or automatic selection produced.
type Policy struct {
	catalog *Catalog
}

func NewPolicy(catalog *Catalog) *Policy {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Policy{catalog: catalog}
}

// Select resolves a debate's roster and thresholds. urgency and budget are
// both expected in [0, 1]; out-of-range values are treated as absent.
func (p *Policy) Select(question, preset string, urgency, budget float64, overrides Overrides) Decision {
	var cat Categorization
	var decision Decision

	if preset != "" {
		decision = p.fromPreset(preset)
	} else {
		cat = Categorize(question)
		decision = p.automatic(cat, urgency, budget)
	}
	decision.Categorization = cat

	decision = applyOverrides(decision, overrides)
	return decision
}

func (p *Policy) fromPreset(id string) Decision {
	preset, ok := p.catalog.Get(id)
	if !ok {
		preset, _ = p.catalog.Get(PresetBalanced)
		return Decision{
			Preset: PresetBalanced, Roster: preset.Roster(), MaxRounds: preset.MaxRounds,
			ConsensusThreshold: preset.ConsensusThresholdOverride,
			Reason:             "unknown preset, defaulted to balanced",
		}
	}
	return Decision{
		Preset: preset.ID, Roster: preset.Roster(), MaxRounds: preset.MaxRounds,
		ConsensusThreshold: preset.ConsensusThresholdOverride,
		Reason:             "explicit preset",
	}
}

// automatic applies the spec's rule order: security keywords win outright,
// then urgency, then budget, then complexity/criticality combinations, then
// a default of balanced. A zero-value Categorization (the categorizer
// failure sentinel) always defaults to balanced.
func (p *Policy) automatic(cat Categorization, urgency, budget float64) Decision {
	if cat.Category == "" {
		return p.named(PresetBalanced, "categorizer failure, defaulted to balanced")
	}

	switch {
	case cat.Category == "security":
		return p.named(PresetSecurityFocused, "security keywords detected")
	case urgency > 0.8:
		return p.named(PresetRapid, "urgency above 0.8")
	case budget > 0 && budget < 0.3:
		return p.named(PresetCostOptimized, "budget below 0.3")
	case cat.Complexity == LevelHigh && cat.Criticality == LevelHigh:
		return p.named(PresetMaximumAccuracy, "high complexity and high criticality")
	case cat.Complexity == LevelHigh:
		return p.named(PresetDeepAnalysis, "high complexity")
	case cat.Complexity == LevelLow || hasAny(cat.Keywords, simpleTaskKeywords):
		return p.named(PresetRapid, "low complexity or simple-task keywords")
	default:
		return p.named(PresetBalanced, "default")
	}
}

func (p *Policy) named(id, reason string) Decision {
	preset, ok := p.catalog.Get(id)
	if !ok {
		preset, _ = p.catalog.Get(PresetBalanced)
		id = PresetBalanced
	}
	return Decision{
		Preset: id, Roster: preset.Roster(), MaxRounds: preset.MaxRounds,
		ConsensusThreshold: preset.ConsensusThresholdOverride, Reason: reason,
	}
}

func applyOverrides(d Decision, o Overrides) Decision {
	if len(o.Roster) > 0 {
		d.Roster = o.Roster
	}
	if o.MaxRounds > 0 {
		d.MaxRounds = o.MaxRounds
	}
	if o.ConsensusThreshold > 0 {
		d.ConsensusThreshold = o.ConsensusThreshold
	}
	return d
}
