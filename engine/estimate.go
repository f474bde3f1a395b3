package engine

import (
	"fmt"
	"time"

	"github.com/gomind-labs/debate-consensus/selection"
)

// avgCharsPerToken approximates tokens from character count, matching the
// cache's own ceil(len/4) accounting so estimates and actuals compare
// directly.
const avgCharsPerToken = 4

// perRoundWallClock is the nominal wall-clock assumed per debate round,
// used only for the pre-run time estimate; the Orchestrator's actual
// per-round deadline is independent and typically shorter in practice.
const perRoundWallClock = 20 * time.Second

// CostEstimate is the external-interface result shape for
// estimate_preset_cost: an opaque heuristic, not a real provider pricing
// table (spec.md §9 leaves pricing unspecified).
type CostEstimate struct {
	Preset          string
	RosterSize      int
	MaxRounds       int
	EstimatedTokens int
	EstimatedCost   float64
	EstimatedTime   time.Duration
}

// EstimateCost implements estimate_preset_cost: given a preset ID and an
// optional question length (0 if unknown), project token count, cost, and
// wall-clock time without running a debate.
func (e *Engine) EstimateCost(presetID string, questionLength int) (CostEstimate, error) {
	preset, ok := e.catalog.Get(presetID)
	if !ok {
		return CostEstimate{}, fmt.Errorf("engine.EstimateCost: unknown preset %q", presetID)
	}
	decision := selection.Decision{Preset: preset.ID, Roster: preset.Roster(), MaxRounds: preset.MaxRounds}
	return EstimateCost(preset.ID, questionLength, decision), nil
}

// EstimateCost projects cost and time for an already-resolved roster and
// round budget. Every round assumes every roster entry both proposes and
// is evaluated once, plus one final synthesis call.
func EstimateCost(presetID string, questionLength int, decision selection.Decision) CostEstimate {
	rosterSize := len(decision.Roster)
	maxRounds := decision.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 1
	}

	questionTokens := questionLength / avgCharsPerToken
	if questionLength%avgCharsPerToken != 0 {
		questionTokens++
	}

	callsPerRound := rosterSize
	totalCalls := callsPerRound*maxRounds + 1 // +1 synthesis call
	estimatedTokens := (questionTokens + 1) * totalCalls

	return CostEstimate{
		Preset:          presetID,
		RosterSize:      rosterSize,
		MaxRounds:       maxRounds,
		EstimatedTokens: estimatedTokens,
		EstimatedCost:   float64(estimatedTokens) * tokenCostPerToken,
		EstimatedTime:   time.Duration(maxRounds) * perRoundWallClock,
	}
}
