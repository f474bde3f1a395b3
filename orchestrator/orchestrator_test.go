package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gomind-labs/debate-consensus/consensus"
	"github.com/gomind-labs/debate-consensus/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCaller returns a fixed response per alias, optionally varying by
// call count, and records every (alias, prompt) pair it was asked about.
type scriptedCaller struct {
	mu        sync.Mutex
	responses map[core.ModelAlias]string
	errors    map[core.ModelAlias]error
	calls     int
}

func (c *scriptedCaller) CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if err, ok := c.errors[alias]; ok {
		return "", err
	}
	return c.responses[alias], nil
}

func roster(aliases ...string) core.Roster {
	r := make(core.Roster, len(aliases))
	for i, a := range aliases {
		r[i] = core.RosterEntry{Alias: core.ModelAlias(a)}
	}
	return r
}

func lexicalAnalyzer() *consensus.Analyzer {
	failingCoordinator := &failingCaller{}
	return consensus.NewAnalyzer(failingCoordinator, core.ModelAlias("coordinator"), nil)
}

type failingCaller struct{}

func (failingCaller) CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error) {
	return "", errors.New("coordinator unreachable")
}

func TestOrchestrator_FailsWithFewerThanTwoInitialPositions(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{"k1": "only answer"},
		errors: map[core.ModelAlias]error{
			"k2": errors.New("down"),
			"k3": errors.New("down"),
		},
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, nil)

	result, err := o.Run(context.Background(), "d1", "what is a closure in JavaScript", roster("k1", "k2", "k3"), Config{})

	require.Error(t, err)
	var ee *core.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, core.KindInsufficientResponses, ee.Kind)
	assert.False(t, result.Cancelled)
}

func TestOrchestrator_SynthesizerFailureFallsBackToConcatenation(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{
			"k2": "closures capture variables from enclosing scope",
			"k3": "a closure captures variables from the enclosing scope",
		},
		errors: map[core.ModelAlias]error{
			"k1": errors.New("synthesizer down"),
		},
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, nil)

	result, err := o.Run(context.Background(), "d2", "what is a closure in JavaScript", roster("k1", "k2", "k3"), Config{MaxIterations: 5})

	require.NoError(t, err)
	assert.Equal(t, "fallback", result.SynthesizedBy)
	assert.NotEmpty(t, result.Solution)
	assert.Len(t, result.Contributors, 2)
}

func TestOrchestrator_SynthesizerSuccessUsesSynthesizerAlias(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{
			"k1": "synthesized final answer",
			"k2": "alpha position on the question",
			"k3": "beta position on the question",
		},
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, nil)

	result, err := o.Run(context.Background(), "d3", "what is a closure in JavaScript", roster("k1", "k2", "k3"), Config{MaxIterations: 1})

	require.NoError(t, err)
	assert.Equal(t, "coordinator", result.SynthesizedBy)
}

func TestOrchestrator_EmitsStateTransitionEvents(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{
			"k1": "alpha full answer here",
			"k2": "beta full answer here",
		},
	}
	var mu sync.Mutex
	var seen []core.DebateEventType
	sink := func(e core.DebateEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Type)
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, sink)

	_, err := o.Run(context.Background(), "d4", "what is a closure in JavaScript", roster("k1", "k2"), Config{MaxIterations: 1})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, seen, core.EventStateTransition)
	assert.Contains(t, seen, core.EventPositionsCollected)
	assert.Contains(t, seen, core.EventVerdict)
	assert.Contains(t, seen, core.EventSynthesized)
}

func TestOrchestrator_DeadlineBreachReturnsCancelledResult(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{
			"k1": "alpha",
			"k2": "beta",
		},
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	result, err := o.Run(ctx, "d5", "what is a closure in JavaScript", roster("k1", "k2"), Config{})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
}

func TestIsStuck_DetectsNarrowSpreadOverThreeRounds(t *testing.T) {
	assert.True(t, isStuck([]int{71, 72, 71}))
	assert.False(t, isStuck([]int{60, 65, 80}))
	assert.False(t, isStuck([]int{71, 72}))
}

func TestOrchestrator_UpdateRetainsPreviousPositionOnNull(t *testing.T) {
	caller := &scriptedCaller{
		responses: map[core.ModelAlias]string{
			"k1": "apple banana cherry date",
		},
		errors: map[core.ModelAlias]error{
			"k2": errors.New("flaky"),
		},
	}
	o := New(caller, lexicalAnalyzer(), nil, nil, nil)

	positions := map[core.RosterEntry]core.Position{
		{Alias: "k1"}: {Text: "old k1 text"},
		{Alias: "k2"}: {Text: "old k2 text"},
	}
	verdict := core.ConsensusVerdict{Disagreements: []string{"scope semantics"}}

	state := &DebateState{
		DebateState: core.DebateState{Roster: roster("k1", "k2")},
		Question:    "what is a closure",
	}
	next := o.update(context.Background(), state, positions, verdict, Config{PerRoundDeadline: time.Second})

	assert.Equal(t, "old k2 text", next[core.RosterEntry{Alias: "k2"}].Text)
	assert.Equal(t, "apple banana cherry date", next[core.RosterEntry{Alias: "k1"}].Text)
}
