package models

import "time"

// WorkflowFlags are the control flags for one post-interview run. They are
// read once at branch time and never mutated mid-run, so a run is
// reproducible from its explicit inputs alone.
type WorkflowFlags struct {
	DisableDiagram      bool `json:"disable_diagram"`
	DisableRequirements bool `json:"disable_requirements"`
	DisableDocument     bool `json:"disable_document"`
}

// RunStatus is the coarse lifecycle of a workflow run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// WorkflowRun aggregates the phase results plus control flags for one
// session's post-interview processing. It is reconstructible from persisted
// phase results, and additionally checkpointed as a JSON document so a
// status query between turns sees consistent progress.
type WorkflowRun struct {
	SessionID      string                `json:"session_id"`
	Flags          WorkflowFlags         `json:"flags"`
	Status         RunStatus             `json:"status"`
	Phases         map[Phase]PhaseResult `json:"phases"`
	CompletedSteps []string              `json:"completed_steps"`
	Error          string                `json:"error,omitempty"`
	StartedAt      time.Time             `json:"started_at"`
	FinishedAt     *time.Time            `json:"finished_at,omitempty"`
}

// PhaseStatusMap returns the phase -> status view reported to callers.
func (r *WorkflowRun) PhaseStatusMap() map[Phase]PhaseStatus {
	statuses := make(map[Phase]PhaseStatus, len(r.Phases))
	for phase, result := range r.Phases {
		statuses[phase] = result.Status
	}

	return statuses
}

// BranchesResolved reports whether both independent branches reached a
// terminal status. The join barrier counts exactly these two branches,
// even when both are skipped.
func (r *WorkflowRun) BranchesResolved() bool {
	return r.Phases[PhaseDiagram].Status.Terminal() &&
		r.Phases[PhaseRequirements].Status.Terminal()
}
