// Package report writes the end-of-run summary artifact.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/marcohefti/agent-arena/internal/task"
)

// CaseRecord mirrors one recorded case outcome.
type CaseRecord struct {
	CaseID     string `json:"caseId"`
	ExitCode   int    `json:"exitCode"`
	TimedOut   bool   `json:"timedOut,omitempty"`
	LogPath    string `json:"logPath"`
	DurationMs int64  `json:"durationMs"`
}

// AgentRecord is one agent task's aggregate.
type AgentRecord struct {
	AgentID  string       `json:"agentId"`
	InitExit int          `json:"initExit"`
	Failed   bool         `json:"failed"`
	Cases    []CaseRecord `json:"cases"`
}

// Summary is the whole run.
type Summary struct {
	SchemaVersion int           `json:"schemaVersion"`
	RunID         string        `json:"runId"`
	StartedAt     string        `json:"startedAt"`
	FinishedAt    string        `json:"finishedAt"`
	Failed        bool          `json:"failed"`
	Agents        []AgentRecord `json:"agents"`
}

// NewRunID mints a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Build assembles a summary from scheduler outcomes.
func Build(runID string, started, finished time.Time, outcomes []task.Outcome) Summary {
	s := Summary{
		SchemaVersion: 1,
		RunID:         runID,
		StartedAt:     started.UTC().Format(time.RFC3339Nano),
		FinishedAt:    finished.UTC().Format(time.RFC3339Nano),
	}
	for _, out := range outcomes {
		ar := AgentRecord{
			AgentID:  out.AgentID,
			InitExit: out.InitExit,
			Failed:   out.Failed,
		}
		for _, cr := range out.Cases {
			ar.Cases = append(ar.Cases, CaseRecord{
				CaseID:     cr.CaseID,
				ExitCode:   cr.ExitCode,
				TimedOut:   cr.TimedOut,
				LogPath:    cr.LogPath,
				DurationMs: cr.Duration.Milliseconds(),
			})
		}
		if ar.Failed {
			s.Failed = true
		}
		s.Agents = append(s.Agents, ar)
	}
	return s
}

// Write persists the summary as run.json under the output root, atomically:
// a half-written summary is worse than none.
func Write(outputDir string, s Summary) (string, error) {
	path := filepath.Join(outputDir, "run.json")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	raw = append(raw, '\n')

	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return path, nil
}
