// Package orchestrator drives the iterative debate state machine: fan out
// an initial prompt to every roster entry, evaluate consensus after each
// round, and either ask for updates or synthesize a final answer.
package orchestrator

import (
	"context"
	"time"

	"github.com/gomind-labs/debate-consensus/consensus"
	"github.com/gomind-labs/debate-consensus/core"
)

// State is one node of the debate state machine.
type State string

const (
	StateInit         State = "INIT"
	StateProposing    State = "PROPOSING"
	StateEvaluating   State = "EVALUATING"
	StateUpdating     State = "UPDATING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

// ModelCaller is the narrow seam the Orchestrator drives the Model Invoker
// through. The Invoker must never hold a reference back to the
// Orchestrator, so this interface only exposes the one primitive.
type ModelCaller interface {
	CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error)
}

// ArtifactWriter persists per-round and final debate logs. Errors are
// logged by the Orchestrator and never abort the debate.
type ArtifactWriter interface {
	WriteIntermediate(debateID string, round int, positions map[core.RosterEntry]core.Position, verdict core.ConsensusVerdict, trend []int) error
	WriteFinal(debateID string, result core.DebateResult, state DebateState) error
}

// DebateEventSink receives non-blocking progress notifications.
type DebateEventSink func(core.DebateEvent)

// Config bounds one Orchestrator's behavior; distinct from core.Config so a
// Selection Policy preset can override per-debate values without mutating
// global configuration.
type Config struct {
	MaxIterations    int
	PerRoundDeadline time.Duration
	DebateDeadline   time.Duration
	Coordinator      core.ModelAlias
	ProjectPath      string
	Category         string
}

const (
	defaultPerRoundDeadline = 10 * time.Minute
	defaultDebateDeadline   = 30 * time.Minute
	defaultMaxIterations    = 5
	stuckWindow             = 3
	stuckSpread             = 3
)

// Orchestrator runs one debate to completion. It holds no state between
// debates; DebateState is owned exclusively by the Run call that created it.
type Orchestrator struct {
	caller   ModelCaller
	analyzer *consensus.Analyzer
	artifact ArtifactWriter
	logger   core.ComponentAwareLogger
	events   DebateEventSink
}

func New(caller ModelCaller, analyzer *consensus.Analyzer, artifact ArtifactWriter, logger core.ComponentAwareLogger, events DebateEventSink) *Orchestrator {
	return &Orchestrator{caller: caller, analyzer: analyzer, artifact: artifact, logger: logger, events: events}
}

// DebateState mirrors core.DebateState plus the fields the state machine
// needs internally (current State, the question/roster it was built from).
type DebateState struct {
	core.DebateState
	Question string
	State    State
}

// Run drives one debate from INIT to DONE or FAILED. A non-nil error means
// the debate ended in FAILED (fewer than 2 initial positions survived); any
// other termination, including a deadline breach, returns (result, nil)
// with Cancelled set as appropriate.
func (o *Orchestrator) Run(ctx context.Context, debateID, question string, roster core.Roster, cfg Config) (core.DebateResult, error) {
	cfg = withDefaults(cfg)

	ctx, cancel := context.WithTimeout(ctx, cfg.DebateDeadline)
	defer cancel()

	state := DebateState{
		DebateState: core.DebateState{
			DebateID:  debateID,
			Roster:    roster,
			StartedAt: time.Now(),
		},
		Question: question,
		State:    StateInit,
	}

	o.emit(debateID, core.EventStateTransition, 0, StateInit)
	o.transition(&state, StateProposing)

	positions, ok := o.propose(ctx, &state, cfg)
	if !ok {
		o.transition(&state, StateFailed)
		return core.DebateResult{Cancelled: ctx.Err() != nil},
			core.NewEngineError("orchestrator.Run", core.KindInsufficientResponses, core.ErrInsufficientResponses)
	}

	var verdict core.ConsensusVerdict
	for {
		if ctx.Err() != nil {
			return o.synthesize(ctx, &state, positions, nil, true), nil
		}

		o.transition(&state, StateEvaluating)
		verdict = o.evaluate(ctx, &state, positions)

		if o.shouldSynthesize(&state, verdict, cfg) {
			return o.synthesize(ctx, &state, positions, verdict.Disagreements, ctx.Err() != nil), nil
		}

		o.transition(&state, StateUpdating)
		positions = o.update(ctx, &state, positions, verdict, cfg)
	}
}

func withDefaults(cfg Config) Config {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.PerRoundDeadline <= 0 {
		cfg.PerRoundDeadline = defaultPerRoundDeadline
	}
	if cfg.DebateDeadline <= 0 {
		cfg.DebateDeadline = defaultDebateDeadline
	}
	return cfg
}

func (o *Orchestrator) transition(state *DebateState, next State) {
	state.State = next
	o.emit(state.DebateID, core.EventStateTransition, len(state.Rounds), next)
}

func (o *Orchestrator) emit(debateID string, typ core.DebateEventType, round int, payload interface{}) {
	if o.events == nil {
		return
	}
	event := core.DebateEvent{DebateID: debateID, Type: typ, Round: round, Payload: payload}
	defer func() { recover() }()
	o.events(event)
}

// propose fans out the initial prompt to every roster entry and drops
// nulls. Returns ok=false when fewer than 2 positions survive.
func (o *Orchestrator) propose(ctx context.Context, state *DebateState, cfg Config) (map[core.RosterEntry]core.Position, bool) {
	prompt := consensus.BuildInitialPrompt(state.Question, cfg.Category)

	responses := fanOut(ctx, state.Roster, cfg.PerRoundDeadline, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		return o.caller.CallModel(ctx, entry.Alias, prompt, cfg.ProjectPath)
	})

	positions := make(map[core.RosterEntry]core.Position, len(responses))
	for entry, text := range responses {
		positions[entry] = core.Position{Round: 0, Text: text}
	}

	o.emit(state.DebateID, core.EventPositionsCollected, 0, len(positions))
	return positions, len(positions) >= 2
}

// update asks every roster entry to revise its position given the other
// models' current positions and the analyzer's disagreements. A null
// response retains the model's previous position.
func (o *Orchestrator) update(ctx context.Context, state *DebateState, positions map[core.RosterEntry]core.Position, verdict core.ConsensusVerdict, cfg Config) map[core.RosterEntry]core.Position {
	round := len(state.Rounds)

	responses := fanOut(ctx, state.Roster, cfg.PerRoundDeadline, func(ctx context.Context, entry core.RosterEntry) (string, error) {
		own, ok := positions[entry]
		if !ok {
			own = core.Position{}
		}
		others := otherPositions(positions, entry)
		prompt := consensus.BuildUpdatePrompt(state.Question, own, others, verdict.Disagreements)
		return o.caller.CallModel(ctx, entry.Alias, prompt, cfg.ProjectPath)
	})

	next := make(map[core.RosterEntry]core.Position, len(positions))
	for entry, prev := range positions {
		if text, ok := responses[entry]; ok {
			next[entry] = core.Position{Round: round, Text: text}
		} else {
			next[entry] = prev
		}
	}
	return next
}

func otherPositions(positions map[core.RosterEntry]core.Position, self core.RosterEntry) map[core.RosterEntry]core.Position {
	out := make(map[core.RosterEntry]core.Position, len(positions))
	for entry, pos := range positions {
		if entry != self {
			out[entry] = pos
		}
	}
	return out
}

// evaluate invokes the Analyzer (which itself orders positions by roster
// index when building prompts, keeping scoring reproducible regardless of
// map iteration order), records the round, and writes an intermediate
// artifact.
func (o *Orchestrator) evaluate(ctx context.Context, state *DebateState, positions map[core.RosterEntry]core.Position) core.ConsensusVerdict {
	verdict := o.analyzer.Evaluate(ctx, state.Question, positions, state.ConsensusTrend)

	round := core.Round{
		Index:            len(state.Rounds),
		PositionsByModel: positions,
		ConsensusScore:   verdict.Score,
		Disagreements:    verdict.Disagreements,
		Timestamp:        time.Now(),
	}
	state.Rounds = append(state.Rounds, round)
	state.ConsensusTrend = append(state.ConsensusTrend, verdict.Score)

	o.emit(state.DebateID, core.EventVerdict, round.Index, verdict)

	if o.artifact != nil {
		if err := o.artifact.WriteIntermediate(state.DebateID, round.Index, positions, verdict, state.ConsensusTrend); err != nil && o.logger != nil {
			o.logger.Warn("failed to write intermediate debate artifact", map[string]interface{}{
				"debate_id": state.DebateID,
				"round":     round.Index,
				"error":     err.Error(),
			})
		}
	}

	return verdict
}

func (o *Orchestrator) shouldSynthesize(state *DebateState, verdict core.ConsensusVerdict, cfg Config) bool {
	if verdict.SynthesisReady && !verdict.ContinueDebate {
		return true
	}
	if len(state.Rounds) >= cfg.MaxIterations {
		return true
	}
	return isStuck(state.ConsensusTrend)
}

// isStuck declares the debate stuck once at least 3 rounds have completed
// and the last three consensus scores span fewer than 3 points.
func isStuck(trend []int) bool {
	if len(trend) < stuckWindow {
		return false
	}
	last := trend[len(trend)-stuckWindow:]
	lo, hi := last[0], last[0]
	for _, v := range last[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi-lo < stuckSpread
}
