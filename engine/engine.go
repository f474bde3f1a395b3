// Package engine wires the Selection Policy, Fingerprint Cache, and
// Iterative Orchestrator into the four tool-facing operations: debating a
// question, listing presets, analyzing a question for a recommended preset,
// and estimating a preset's cost before running it.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gomind-labs/debate-consensus/cache"
	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/orchestrator"
	"github.com/gomind-labs/debate-consensus/selection"
)

// tokenCostPerToken is the flat per-token cost used by both the cache's
// actual-cost accounting and the pre-run estimate, so estimates and actuals
// are directly comparable.
const tokenCostPerToken = 0.00002

// Engine ties the Selection Policy, Fingerprint Cache, and Orchestrator
// together into one debate call.
type Engine struct {
	catalog       *selection.Catalog
	policy        *selection.Policy
	store         cache.Store
	fingerprinter *cache.ProjectFingerprinter
	orch          *orchestrator.Orchestrator
	logger        core.ComponentAwareLogger
	telemetry     core.Telemetry
}

// New builds an Engine. catalog and store must be non-nil; fingerprinter
// may be nil when project-context caching is not needed. telemetry may be
// nil, in which case every debate runs with core.NoOpTelemetry.
func New(catalog *selection.Catalog, store cache.Store, fingerprinter *cache.ProjectFingerprinter, orch *orchestrator.Orchestrator, logger core.ComponentAwareLogger, telemetry core.Telemetry) *Engine {
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	return &Engine{
		catalog:       catalog,
		policy:        selection.NewPolicy(catalog),
		store:         store,
		fingerprinter: fingerprinter,
		orch:          orch,
		logger:        logger,
		telemetry:     telemetry,
	}
}

// DebateRequest is the external-interface request shape for debate_with_preset.
type DebateRequest struct {
	Question    string
	Preset      string
	ProjectPath string
	Urgency     float64
	Budget      float64
	Overrides   selection.Overrides
	BypassCache bool
}

// Debate runs debate_with_preset: resolve a roster via the Selection
// Policy, probe the Fingerprint Cache, run the debate on a miss, and store
// the outcome.
func (e *Engine) Debate(ctx context.Context, req DebateRequest) (core.DebateResult, error) {
	ctx, span := e.telemetry.StartSpan(ctx, "engine.Debate")
	defer span.End()
	span.SetAttribute("preset", req.Preset)

	if err := core.ValidateQuestion(req.Question); err != nil {
		span.RecordError(err)
		return core.DebateResult{}, err
	}

	decision := e.policy.Select(req.Question, req.Preset, req.Urgency, req.Budget, req.Overrides)
	category := decision.Categorization.Category
	if category == "" {
		category = "preset:" + decision.Preset
	}

	projectFingerprint := ""
	if req.ProjectPath != "" && e.fingerprinter != nil {
		projectFingerprint = e.fingerprinter.Fingerprint(req.ProjectPath)
	}

	fingerprint := cache.Fingerprint(req.Question, category, aliasStrings(decision.Roster), projectFingerprint)

	pctx := cache.ProbeContext{ProjectFingerprint: projectFingerprint, BypassCache: req.BypassCache}
	if entry, ok := e.store.Probe(ctx, fingerprint, pctx); ok {
		result := entry.Result
		result.FromCache = true
		return result, nil
	}

	start := time.Now()
	debateID := uuid.NewString()

	result, err := e.orch.Run(ctx, debateID, req.Question, decision.Roster, orchestrator.Config{
		MaxIterations: decision.MaxRounds,
		Category:      category,
		ProjectPath:   req.ProjectPath,
	})
	if err != nil {
		span.RecordError(err)
		return core.DebateResult{}, err
	}

	actualTime := time.Since(start)
	estimate := EstimateCost(decision.Preset, len(req.Question), decision)

	name := decision.Preset
	if preset, ok := e.catalog.Get(decision.Preset); ok {
		name = preset.Name
	}

	result.Preset = &core.PresetOutcome{
		ID:              decision.Preset,
		Name:            name,
		ActualTime:      actualTime,
		EstimatedTime:   estimate.EstimatedTime,
		EstimatedCost:   estimate.EstimatedCost,
		SelectionReason: decision.Reason,
	}

	tokenCount, actualCost := cache.EstimateTokensAndCost(result)
	result.Preset.ActualCost = actualCost

	if e.store != nil {
		entry := core.CacheEntry{
			Fingerprint:        fingerprint,
			Result:             result,
			StoredAt:           time.Now(),
			TokenCount:         tokenCount,
			EstimatedCost:      actualCost,
			ProjectFingerprint: projectFingerprint,
			Category:           category,
		}
		if result.Confidence != nil {
			entry.Confidence = float64(result.Confidence.Score) / 100
		}
		if err := e.store.Store(ctx, entry); err != nil && e.logger != nil {
			e.logger.Warn("failed to store debate result in cache", map[string]interface{}{
				"fingerprint": fingerprint,
				"error":       err.Error(),
			})
		}
	}

	return result, nil
}

// ListPresets implements list_presets. detailed is accepted for interface
// symmetry with the spec's tool signature; every Preset field is always
// populated, so there is no reduced form to fall back to.
func (e *Engine) ListPresets(detailed bool) []selection.Preset {
	return e.catalog.List()
}

// AnalyzeQuestion implements analyze_question_for_preset: runs the
// categorizer and automatic-selection rule chain without executing a
// debate, surfacing the reasoning trail for the caller to inspect.
func (e *Engine) AnalyzeQuestion(question, projectPath string, urgency, budget float64) selection.Decision {
	return e.policy.Select(question, "", urgency, budget, selection.Overrides{})
}

func aliasStrings(roster core.Roster) []string {
	out := make([]string, len(roster))
	for i, entry := range roster {
		out[i] = string(entry.Alias)
	}
	return out
}
