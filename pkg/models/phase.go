package models

import (
	"fmt"
	"time"
)

// Phase names one stage of post-interview processing.
type Phase string

const (
	PhaseDiagram      Phase = "diagram"
	PhaseRequirements Phase = "requirements"
	PhaseDocument     Phase = "document"
	PhaseReviewer     Phase = "reviewer"
)

// ParsePhase maps a wire-format phase name to a Phase.
func ParsePhase(value string) (Phase, error) {
	switch phase := Phase(value); phase {
	case PhaseDiagram, PhaseRequirements, PhaseDocument, PhaseReviewer:
		return phase, nil
	default:
		return "", fmt.Errorf("unknown phase %q", value)
	}
}

// PhaseStatus defines the possible states of a phase execution.
type PhaseStatus string

const (
	PhaseStatusPending PhaseStatus = "pending"
	PhaseStatusRunning PhaseStatus = "running"
	PhaseStatusSkipped PhaseStatus = "skipped"
	PhaseStatusDone    PhaseStatus = "done"
	PhaseStatusFailed  PhaseStatus = "failed"
)

// Terminal reports whether the status resolves the phase for join purposes.
func (s PhaseStatus) Terminal() bool {
	switch s {
	case PhaseStatusDone, PhaseStatusFailed, PhaseStatusSkipped:
		return true
	default:
		return false
	}
}

// PhaseResult is the durable record of one phase execution. Immutable once
// its status is terminal.
type PhaseResult struct {
	SessionID    string      `json:"session_id" validate:"required"`
	Phase        Phase       `json:"phase"      validate:"required"`
	Status       PhaseStatus `json:"status"`
	Artifact     string      `json:"artifact,omitempty"`
	ArtifactPath string      `json:"artifact_path,omitempty"`
	Error        string      `json:"error,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// legalPhaseTransitions enumerates the allowed status edges:
// pending -> running -> {done|failed}, or pending -> skipped.
var legalPhaseTransitions = map[PhaseStatus][]PhaseStatus{
	PhaseStatusPending: {PhaseStatusRunning, PhaseStatusSkipped},
	PhaseStatusRunning: {PhaseStatusDone, PhaseStatusFailed},
}

// Transition moves the result to a new status, rejecting illegal edges.
func (r *PhaseResult) Transition(to PhaseStatus) error {
	for _, allowed := range legalPhaseTransitions[r.Status] {
		if allowed == to {
			now := time.Now().UTC()
			if to == PhaseStatusRunning {
				r.StartedAt = &now
			}
			if to.Terminal() {
				r.CompletedAt = &now
			}
			r.Status = to

			return nil
		}
	}

	return fmt.Errorf("illegal phase transition %s -> %s for phase %s", r.Status, to, r.Phase)
}
