package domain

import "time"

// SceneStatus enumerates the per-scene lifecycle states within one run.
// Terminal states are never re-entered; a new run resets every scene to
// pending.
type SceneStatus string

const (
	SceneStatusPending   SceneStatus = "pending"
	SceneStatusRunning   SceneStatus = "running"
	SceneStatusSucceeded SceneStatus = "succeeded"
	SceneStatusFailed    SceneStatus = "failed"
	// SceneStatusSkipped marks a scene that was never attempted because an
	// earlier scene failed or the run was cancelled before it started.
	SceneStatusSkipped SceneStatus = "skipped"
)

// RunStatus enumerates run session lifecycle states.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// SceneResult is the immutable record of one successful generation: where
// the playable video lives plus the inputs that produced it.
type SceneResult struct {
	StorageKey string    `json:"storage_key"`
	MIME       string    `json:"mime"`
	Model      VeoModel  `json:"model"`
	Prompt     string    `json:"prompt"`
	CreatedAt  time.Time `json:"created_at"`
}

// SceneOutcome is the per-scene view exposed after (and during) a run.
type SceneOutcome struct {
	SceneID string       `json:"scene_id"`
	Status  SceneStatus  `json:"status"`
	Result  *SceneResult `json:"result,omitempty"`
	Error   string       `json:"error,omitempty"`
}
