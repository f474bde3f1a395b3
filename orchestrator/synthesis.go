package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gomind-labs/debate-consensus/consensus"
	"github.com/gomind-labs/debate-consensus/core"
)

// summaryLen bounds how much of a non-winning position's text is quoted in
// the deterministic-concatenation synthesis fallback.
const summaryLen = 200

// synthesize produces the debate's final DebateResult and writes the final
// artifact. It is reached from SYNTHESIZING and always lands on DONE; there
// is no terminal failure path once at least 2 initial positions exist.
func (o *Orchestrator) synthesize(ctx context.Context, state *DebateState, positions map[core.RosterEntry]core.Position, disagreements []string, cancelled bool) core.DebateResult {
	o.transition(state, StateSynthesizing)

	winner := mostRepresentative(positions)
	contributors := contributingAliases(state.Roster, positions)
	solution, synthesizedBy := o.runSynthesis(ctx, state, positions, disagreements, winner)

	result := core.DebateResult{
		Solution:      solution,
		Winner:        winner.Alias,
		Contributors:  contributors,
		Rounds:        len(state.Rounds),
		Cancelled:     cancelled,
		SynthesizedBy: synthesizedBy,
	}

	if n := len(state.ConsensusTrend); n > 0 {
		score := state.ConsensusTrend[n-1]
		result.Score = score
		result.Confidence = &core.ConfidenceReport{
			Score:   score,
			Level:   core.LevelForScore(score),
			Factors: disagreements,
		}
	}

	o.transition(state, StateDone)
	o.emit(state.DebateID, core.EventSynthesized, len(state.Rounds), result)

	if o.artifact != nil {
		if err := o.artifact.WriteFinal(state.DebateID, result, *state); err != nil && o.logger != nil {
			o.logger.Warn("failed to write final debate artifact", map[string]interface{}{
				"debate_id": state.DebateID,
				"error":     err.Error(),
			})
		}
	}

	return result
}

// runSynthesis calls the designated synthesizer (by convention the first
// roster entry's alias) and falls back to deterministic concatenation on
// any failure, timeout, or empty reply.
func (o *Orchestrator) runSynthesis(ctx context.Context, state *DebateState, positions map[core.RosterEntry]core.Position, disagreements []string, winner core.RosterEntry) (string, string) {
	if len(state.Roster) == 0 {
		return deterministicSynthesis(positions, winner), "fallback"
	}

	synthesizer := state.Roster[0].Alias
	prompt := consensus.SynthesisSystemPrompt + "\n\n" + consensus.BuildSynthesisPrompt(state.Question, positions, disagreements)

	text, err := o.caller.CallModel(ctx, synthesizer, prompt, state.Question)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, "coordinator"
	}

	if o.logger != nil {
		fields := map[string]interface{}{"debate_id": state.DebateID, "synthesizer": string(synthesizer)}
		if err != nil {
			fields["error"] = err.Error()
		}
		o.logger.Warn("synthesizer failed, falling back to deterministic concatenation", fields)
	}
	return deterministicSynthesis(positions, winner), "fallback"
}

// deterministicSynthesis leads with the most representative position, then
// bullets every other model's (truncated) key points.
func deterministicSynthesis(positions map[core.RosterEntry]core.Position, winner core.RosterEntry) string {
	entries := sortedRosterEntries(positions)

	var b strings.Builder
	if lead, ok := positions[winner]; ok {
		b.WriteString(strings.TrimSpace(lead.Text))
		b.WriteString("\n\n")
	}

	var others []core.RosterEntry
	for _, e := range entries {
		if e != winner {
			others = append(others, e)
		}
	}
	if len(others) > 0 {
		b.WriteString("Other perspectives:\n")
		for _, e := range others {
			fmt.Fprintf(&b, "- %s: %s\n", e.Alias, truncate(positions[e].Text, summaryLen))
		}
	}
	return b.String()
}

func truncate(text string, n int) string {
	text = strings.TrimSpace(text)
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}

// mostRepresentative picks the position with the highest total word-set
// overlap against every other position: the answer closest to the group's
// center of gravity. Used as the deterministic-fallback's lead position and
// as DebateResult.Winner metadata.
func mostRepresentative(positions map[core.RosterEntry]core.Position) core.RosterEntry {
	entries := sortedRosterEntries(positions)
	if len(entries) == 0 {
		return core.RosterEntry{}
	}

	best := entries[0]
	bestScore := -1.0
	for _, e := range entries {
		total := 0.0
		for _, other := range entries {
			if other == e {
				continue
			}
			total += wordOverlap(positions[e].Text, positions[other].Text)
		}
		if total > bestScore {
			bestScore = total
			best = e
		}
	}
	return best
}

func wordOverlap(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	hits := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			hits++
		}
	}
	union := len(setA) + len(setB) - hits
	if union == 0 {
		return 0
	}
	return float64(hits) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func contributingAliases(roster core.Roster, positions map[core.RosterEntry]core.Position) []core.ModelAlias {
	seen := make(map[core.ModelAlias]bool, len(roster))
	out := make([]core.ModelAlias, 0, len(roster))
	for _, entry := range roster {
		if _, ok := positions[entry]; !ok || seen[entry.Alias] {
			continue
		}
		seen[entry.Alias] = true
		out = append(out, entry.Alias)
	}
	return out
}

func sortedRosterEntries(positions map[core.RosterEntry]core.Position) []core.RosterEntry {
	out := make([]core.RosterEntry, 0, len(positions))
	for e := range positions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Alias != out[j].Alias {
			return out[i].Alias < out[j].Alias
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}
