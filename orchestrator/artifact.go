package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gomind-labs/debate-consensus/core"
)

// FileArtifactWriter writes intermediate and final debate logs as one JSON
// file per artifact under a configured directory, matching the persisted
// log layout (logs/iterative_debate_intermediate_<round>_<timestamp>.json,
// logs/iterative_debate_<timestamp>.json).
type FileArtifactWriter struct {
	dir string
}

func NewFileArtifactWriter(dir string) *FileArtifactWriter {
	return &FileArtifactWriter{dir: dir}
}

type intermediateArtifact struct {
	Type      string                            `json:"type"`
	DebateID  string                             `json:"debateId"`
	Round     int                                `json:"round"`
	Positions map[core.RosterEntry]core.Position `json:"positionsByModel"`
	Verdict   core.ConsensusVerdict              `json:"verdict"`
	Trend     []int                              `json:"trend"`
}

func (w *FileArtifactWriter) WriteIntermediate(debateID string, round int, positions map[core.RosterEntry]core.Position, verdict core.ConsensusVerdict, trend []int) error {
	artifact := intermediateArtifact{
		Type:      "intermediate",
		DebateID:  debateID,
		Round:     round,
		Positions: positions,
		Verdict:   verdict,
		Trend:     trend,
	}
	name := fmt.Sprintf("iterative_debate_intermediate_%d_%d.json", round, time.Now().UnixNano())
	return w.writeJSON(name, artifact)
}

type finalArtifact struct {
	Type     string            `json:"type"`
	DebateID string            `json:"debateId"`
	Result   core.DebateResult `json:"result"`
	Rounds   []core.Round      `json:"rounds"`
	Trend    []int             `json:"consensusTrend"`
}

func (w *FileArtifactWriter) WriteFinal(debateID string, result core.DebateResult, state DebateState) error {
	artifact := finalArtifact{
		Type:     "final",
		DebateID: debateID,
		Result:   result,
		Rounds:   state.Rounds,
		Trend:    state.ConsensusTrend,
	}
	name := fmt.Sprintf("iterative_debate_%d.json", time.Now().UnixNano())
	return w.writeJSON(name, artifact)
}

func (w *FileArtifactWriter) writeJSON(name string, v interface{}) error {
	if w.dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: create logs dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal artifact: %w", err)
	}
	return os.WriteFile(filepath.Join(w.dir, name), data, 0o644)
}
