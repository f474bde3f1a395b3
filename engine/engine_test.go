package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomind-labs/debate-consensus/cache"
	"github.com/gomind-labs/debate-consensus/consensus"
	"github.com/gomind-labs/debate-consensus/core"
	"github.com/gomind-labs/debate-consensus/orchestrator"
	"github.com/gomind-labs/debate-consensus/selection"
)

type stubCaller struct {
	coordinatorAlias core.ModelAlias
}

func (s stubCaller) CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	if alias == s.coordinatorAlias {
		return "", errors.New("coordinator unavailable")
	}
	return "the sky is blue during the day", nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	catalog := selection.NewCatalog()
	store := cache.NewMemoryStore(100, 24*time.Hour, "")
	caller := stubCaller{coordinatorAlias: "coordinator"}
	analyzer := consensus.NewAnalyzer(caller, "coordinator", nil)
	orch := orchestrator.New(caller, analyzer, nil, nil, nil)
	return New(catalog, store, nil, orch, nil, nil)
}

func TestEngine_DebateWithRapidPresetReturnsSolution(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.Debate(context.Background(), DebateRequest{
		Question: "what color is the sky",
		Preset:   selection.PresetRapid,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Solution)
	assert.False(t, result.FromCache)
	require.NotNil(t, result.Preset)
	assert.Equal(t, selection.PresetRapid, result.Preset.ID)
}

func TestEngine_DebateRejectsQuestionBelowMinimumLength(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Debate(context.Background(), DebateRequest{Question: "  too   short  "})

	require.Error(t, err)
	var ee *core.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, core.KindQuestionTooSimple, ee.Kind)
	assert.ErrorIs(t, err, core.ErrQuestionTooSimple)
}

func TestEngine_DebateCachesAndServesSecondCallFromCache(t *testing.T) {
	e := newTestEngine(t)
	req := DebateRequest{Question: "what color is the sky", Preset: selection.PresetRapid}

	first, err := e.Debate(context.Background(), req)
	require.NoError(t, err)

	if first.Confidence == nil {
		t.Skip("fallback verdict produced no confidence score, cache store requires MinConfidence")
	}

	second, err := e.Debate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
}

func TestEngine_DebateBypassCacheAlwaysRunsFresh(t *testing.T) {
	e := newTestEngine(t)
	req := DebateRequest{Question: "what color is the sky", Preset: selection.PresetRapid, BypassCache: true}

	_, err := e.Debate(context.Background(), req)
	require.NoError(t, err)

	second, err := e.Debate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, second.FromCache)
}

func TestEngine_ListPresetsReturnsAllSix(t *testing.T) {
	e := newTestEngine(t)
	assert.Len(t, e.ListPresets(true), 6)
}

func TestEngine_AnalyzeQuestionRoutesSecurityKeywords(t *testing.T) {
	e := newTestEngine(t)
	d := e.AnalyzeQuestion("is there a SQL injection vulnerability here", "", 0, 0)
	assert.Equal(t, selection.PresetSecurityFocused, d.Preset)
}

func TestEngine_EstimateCostUnknownPresetErrors(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.EstimateCost("does-not-exist", 100)
	assert.Error(t, err)
}

func TestEngine_EstimateCostScalesWithRosterAndRounds(t *testing.T) {
	e := newTestEngine(t)
	rapid, err := e.EstimateCost(selection.PresetRapid, 100)
	require.NoError(t, err)

	maxAcc, err := e.EstimateCost(selection.PresetMaximumAccuracy, 100)
	require.NoError(t, err)

	assert.Greater(t, maxAcc.EstimatedTokens, rapid.EstimatedTokens)
	assert.Greater(t, maxAcc.EstimatedCost, rapid.EstimatedCost)
}
