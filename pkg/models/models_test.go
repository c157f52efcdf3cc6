package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseResult_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    PhaseStatus
		to      PhaseStatus
		wantErr bool
	}{
		{"pending to running", PhaseStatusPending, PhaseStatusRunning, false},
		{"pending to skipped", PhaseStatusPending, PhaseStatusSkipped, false},
		{"running to done", PhaseStatusRunning, PhaseStatusDone, false},
		{"running to failed", PhaseStatusRunning, PhaseStatusFailed, false},
		{"pending to done", PhaseStatusPending, PhaseStatusDone, true},
		{"skipped to running", PhaseStatusSkipped, PhaseStatusRunning, true},
		{"done to failed", PhaseStatusDone, PhaseStatusFailed, true},
		{"failed to running", PhaseStatusFailed, PhaseStatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PhaseResult{SessionID: "s1", Phase: PhaseDiagram, Status: tt.from}

			err := result.Transition(tt.to)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.from, result.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, result.Status)

			if tt.to.Terminal() {
				assert.NotNil(t, result.CompletedAt)
			}
		})
	}
}

func TestPhaseStatus_Terminal(t *testing.T) {
	assert.True(t, PhaseStatusDone.Terminal())
	assert.True(t, PhaseStatusFailed.Terminal())
	assert.True(t, PhaseStatusSkipped.Terminal())
	assert.False(t, PhaseStatusPending.Terminal())
	assert.False(t, PhaseStatusRunning.Terminal())
}

func TestWorkflowRun_BranchesResolved(t *testing.T) {
	run := &WorkflowRun{
		SessionID: "s1",
		Phases: map[Phase]PhaseResult{
			PhaseDiagram:      {Phase: PhaseDiagram, Status: PhaseStatusRunning},
			PhaseRequirements: {Phase: PhaseRequirements, Status: PhaseStatusSkipped},
		},
	}
	assert.False(t, run.BranchesResolved())

	run.Phases[PhaseDiagram] = PhaseResult{Phase: PhaseDiagram, Status: PhaseStatusDone}
	assert.True(t, run.BranchesResolved())

	// Both skipped still resolves the barrier.
	run.Phases[PhaseDiagram] = PhaseResult{Phase: PhaseDiagram, Status: PhaseStatusSkipped}
	assert.True(t, run.BranchesResolved())
}

func TestSession_InWorkflow(t *testing.T) {
	session := &Session{State: SessionStateInterview}
	assert.False(t, session.InWorkflow())

	for _, state := range []SessionState{
		SessionStateDiagram, SessionStateRequirements, SessionStateMerging, SessionStateDocument,
	} {
		session.State = state
		assert.True(t, session.InWorkflow(), string(state))
	}

	session.State = SessionStateCompleted
	assert.False(t, session.InWorkflow())
}
