package consensus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// CoordinatorTimeout bounds the coordinator's evaluation call (spec.md §4.5).
const CoordinatorTimeout = 3 * time.Minute

// ModelCaller is the narrow slice of invoker.Invoker the analyzer depends
// on, kept as an interface so this package has no import of invoker.
type ModelCaller interface {
	CallModel(ctx context.Context, alias core.ModelAlias, prompt, projectPath string) (string, error)
}

// Analyzer produces a ConsensusVerdict once per round, preferring a
// designated coordinator model and falling back to lexical agreement when
// the coordinator is unavailable or its reply cannot be parsed.
type Analyzer struct {
	caller      ModelCaller
	coordinator core.ModelAlias
	logger      core.ComponentAwareLogger
}

func NewAnalyzer(caller ModelCaller, coordinator core.ModelAlias, logger core.ComponentAwareLogger) *Analyzer {
	return &Analyzer{caller: caller, coordinator: coordinator, logger: logger}
}

// Evaluate returns this round's verdict. The coordinator is never drawn
// from the debating roster (the caller is responsible for configuring a
// distinct alias) to avoid self-evaluation per spec.md §4.5.
func (a *Analyzer) Evaluate(ctx context.Context, question string, positions map[core.RosterEntry]core.Position, trend []int) core.ConsensusVerdict {
	verdict, err := a.askCoordinator(ctx, question, positions, trend)
	if err == nil {
		return verdict
	}
	if a.logger != nil {
		a.logger.Warn("coordinator evaluation failed, falling back to lexical consensus", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return lexicalFallback(positions)
}

func (a *Analyzer) askCoordinator(ctx context.Context, question string, positions map[core.RosterEntry]core.Position, trend []int) (core.ConsensusVerdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, CoordinatorTimeout)
	defer cancel()

	prompt := BuildCoordinatorPrompt(question, positions, trend)
	reply, err := a.caller.CallModel(callCtx, a.coordinator, prompt, "")
	if err != nil {
		return core.ConsensusVerdict{}, err
	}
	if strings.TrimSpace(reply) == "" {
		return core.ConsensusVerdict{}, core.NewEngineError("consensus.askCoordinator", core.KindParseError, core.ErrMaxRetriesExceeded)
	}

	return parseVerdict(reply)
}

type verdictJSON struct {
	Score          int      `json:"score"`
	Level          string   `json:"level"`
	CoreAgreement  string   `json:"coreAgreement"`
	Disagreements  []string `json:"disagreements"`
	ContinueDebate bool     `json:"continueDebate"`
	SynthesisReady bool     `json:"synthesisReady"`
	Reasoning      string   `json:"reasoning"`
}

// parseVerdict extracts the first JSON object from reply and decodes it.
// Coordinator models sometimes wrap the object in prose or code fences;
// only the object's own braces are trusted as boundaries.
func parseVerdict(reply string) (core.ConsensusVerdict, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return core.ConsensusVerdict{}, core.NewEngineError("consensus.parseVerdict", core.KindParseError, core.ErrMaxRetriesExceeded)
	}

	var v verdictJSON
	if err := json.Unmarshal([]byte(reply[start:end+1]), &v); err != nil {
		return core.ConsensusVerdict{}, core.NewEngineError("consensus.parseVerdict", core.KindParseError, err)
	}

	level := core.ConsensusLevel(v.Level)
	if level == "" {
		level = core.LevelForScore(v.Score)
	}

	return core.ConsensusVerdict{
		Score:          v.Score,
		Level:          level,
		CoreAgreement:  v.CoreAgreement,
		Disagreements:  v.Disagreements,
		ContinueDebate: v.ContinueDebate,
		SynthesisReady: v.SynthesisReady,
		Reasoning:      v.Reasoning,
	}, nil
}

// lexicalFallback computes pairwise word-set Jaccard similarity across all
// positions, averages it into a 0-100 score, and applies spec.md §4.5's
// bucketing rules.
func lexicalFallback(positions map[core.RosterEntry]core.Position) core.ConsensusVerdict {
	texts := make([]string, 0, len(positions))
	for _, pos := range positions {
		texts = append(texts, pos.Text)
	}

	score := int(averageJaccard(texts) * 100)
	level := core.LevelForScore(score)

	return core.ConsensusVerdict{
		Score:          score,
		Level:          level,
		CoreAgreement:  "",
		Disagreements:  nil,
		ContinueDebate: score < 85,
		SynthesisReady: score >= 70,
		Reasoning:      "fallback: lexical overlap",
	}
}

func averageJaccard(texts []string) float64 {
	if len(texts) < 2 {
		return 1.0
	}

	sets := make([]map[string]struct{}, len(texts))
	for i, t := range texts {
		sets[i] = wordSet(t)
	}

	var total float64
	var pairs int
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			total += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 1.0
	}
	return total / float64(pairs)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}
