package consensus

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomind-labs/debate-consensus/core"
)

// sortedEntries returns positions' keys ordered by (alias, instance) so
// prompt text is reproducible regardless of map iteration order.
func sortedEntries(positions map[core.RosterEntry]core.Position) []core.RosterEntry {
	out := make([]core.RosterEntry, 0, len(positions))
	for entry := range positions {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Alias != out[j].Alias {
			return out[i].Alias < out[j].Alias
		}
		return out[i].Instance < out[j].Instance
	})
	return out
}

// coordinatorPromptV1 is the versioned template submitted to the
// coordinator model after every round. Versioned so prompt changes are
// traceable against stored debate logs that recorded which version produced
// a given verdict.
const coordinatorPromptVersion = "v1"

// BuildCoordinatorPrompt constructs the coordinator's evaluation prompt:
// the original question, each model's current response, and the rolling
// consensus trend, demanding a strict JSON ConsensusVerdict object.
func BuildCoordinatorPrompt(question string, positions map[core.RosterEntry]core.Position, trend []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[consensus-prompt %s]\n", coordinatorPromptVersion)
	fmt.Fprintf(&b, "Original question:\n%s\n\n", question)
	b.WriteString("Model responses this round:\n\n")

	for _, entry := range sortedEntries(positions) {
		fmt.Fprintf(&b, "--- %s (instance %d) ---\n%s\n\n", entry.Alias, entry.Instance, positions[entry].Text)
	}

	if len(trend) > 0 {
		fmt.Fprintf(&b, "Consensus trend so far: %v\n\n", trend)
	}

	b.WriteString("Evaluate the degree of agreement across these responses. ")
	b.WriteString("Respond with a single JSON object and nothing else, matching exactly this shape:\n")
	b.WriteString(`{"score": <0-100>, "level": "<none|weak|moderate|strong|near-unanimous>", ` +
		`"coreAgreement": "<text>", "disagreements": ["<text>", ...], ` +
		`"continueDebate": <bool>, "synthesisReady": <bool>, "reasoning": "<text>"}`)
	b.WriteString("\n")
	return b.String()
}

// BuildInitialPrompt is the debate's opening prompt given to every roster
// entry before any positions exist.
func BuildInitialPrompt(question, category string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question (%s): %s\n\n", category, question)
	b.WriteString("Provide your best answer along with brief reasoning for it.")
	return b.String()
}

// BuildUpdatePrompt is given to a roster entry during an UPDATING round: its
// own previous position, every other model's current position, and the
// analyzer's current disagreements list.
func BuildUpdatePrompt(question string, own core.Position, others map[core.RosterEntry]core.Position, disagreements []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Your previous position:\n%s\n\n", own.Text)
	b.WriteString("Other models' current positions:\n\n")
	for _, entry := range sortedEntries(others) {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", entry.Alias, others[entry].Text)
	}
	if len(disagreements) > 0 {
		b.WriteString("Open disagreements to address:\n")
		for _, d := range disagreements {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	b.WriteString("Revise your position if warranted, or restate it with added justification.")
	return b.String()
}

// SynthesisSystemPrompt is the system prompt used for the final
// synthesizer call, grounded on orchestration/synthesizer.go's
// buildSynthesisPrompt but adapted from "synthesize agent responses" to
// "synthesize debate positions into one answer".
const SynthesisSystemPrompt = "You synthesize multiple independent model positions from a structured debate into one coherent, well-justified answer."

// BuildSynthesisPrompt composes the final-round positions and disagreement
// list into the synthesizer's prompt.
func BuildSynthesisPrompt(question string, positions map[core.RosterEntry]core.Position, disagreements []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n\n", question)
	b.WriteString("Final positions:\n\n")
	for _, entry := range sortedEntries(positions) {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", entry.Alias, positions[entry].Text)
	}
	if len(disagreements) > 0 {
		b.WriteString("Remaining disagreements:\n")
		for _, d := range disagreements {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	b.WriteString("Synthesize a single comprehensive answer that reconciles these positions where possible ")
	b.WriteString("and is explicit about any disagreement that could not be reconciled.")
	return b.String()
}
