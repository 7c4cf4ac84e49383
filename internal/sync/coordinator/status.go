package coordinator

import (
	"time"

	"github.com/stacklok/registry-mirror/internal/sync"
)

// Phase is the state of the coordinator's latest run
type Phase string

const (
	// PhasePending means no run has finished yet
	PhasePending Phase = "Pending"

	// PhaseRunning means a run is in progress
	PhaseRunning Phase = "Running"

	// PhaseComplete means the latest run succeeded
	PhaseComplete Phase = "Complete"

	// PhaseFailed means the latest run failed
	PhaseFailed Phase = "Failed"
)

// Snapshot is an immutable view of the coordinator state
type Snapshot struct {
	// Phase of the latest run
	Phase Phase `json:"phase"`

	// Message describes the latest outcome
	Message string `json:"message,omitempty"`

	// LastAttempt is when the latest run started
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSuccess is when the latest successful run finished
	LastSuccess *time.Time `json:"lastSuccess,omitempty"`

	// NextRun is when the next run is scheduled
	NextRun *time.Time `json:"nextRun,omitempty"`

	// FailedStage is the stage of the latest failure
	FailedStage sync.Stage `json:"failedStage,omitempty"`

	// ConsecutiveFailures counts failed runs since the last success
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// Runs counts finished runs
	Runs int `json:"runs"`

	// LastResult is the result of the latest successful run
	LastResult *sync.Result `json:"lastResult,omitempty"`
}

// Ready reports whether at least one run has produced an artifact
func (s Snapshot) Ready() bool {
	return s.LastSuccess != nil
}
