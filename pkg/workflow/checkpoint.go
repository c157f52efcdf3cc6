package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chatback/chatback/pkg/kv"
	"github.com/chatback/chatback/pkg/models"
)

const runKeyPrefix = "chatback:run:"

// ErrRunNotFound indicates no checkpoint exists for the session.
var ErrRunNotFound = errors.New("workflow run not found")

// checkpoint snapshots the run into the key-value store so a status query
// between turns sees consistent progress. Checkpoint failures are logged and
// swallowed: the phase rows remain the durable source of truth.
func (o *Orchestrator) checkpoint(ctx context.Context, run *models.WorkflowRun) {
	o.mu.Lock()
	payload, err := json.Marshal(run)
	o.mu.Unlock()

	if err != nil {
		o.logger.WarnContext(ctx, "Failed to marshal run checkpoint", "session_id", run.SessionID, "error", err)

		return
	}

	err = o.store.Set(ctx, runKeyPrefix+run.SessionID, string(payload), o.config.RunTTL)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to write run checkpoint", "session_id", run.SessionID, "error", err)
	}
}

// LoadRun reconstructs the latest checkpoint for a session. When the
// checkpoint has expired the run is rebuilt from the persisted phase rows.
func (o *Orchestrator) LoadRun(ctx context.Context, sessionID string) (*models.WorkflowRun, error) {
	raw, err := o.store.Get(ctx, runKeyPrefix+sessionID)
	if err == nil {
		var run models.WorkflowRun

		err = json.Unmarshal([]byte(raw), &run)
		if err == nil {
			return &run, nil
		}

		o.logger.WarnContext(ctx, "Corrupt run checkpoint, falling back to phase rows", "session_id", sessionID, "error", err)
	} else if !errors.Is(err, kv.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to read run checkpoint: %w", err)
	}

	results, err := o.persistence.PhaseResults().GetBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load phase results: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrRunNotFound
	}

	run := &models.WorkflowRun{
		SessionID: sessionID,
		Status:    models.RunStatusRunning,
		Phases:    make(map[models.Phase]models.PhaseResult, len(results)),
	}

	allTerminal := true

	for _, result := range results {
		run.Phases[result.Phase] = *result

		if !result.Status.Terminal() {
			allTerminal = false
		}
	}

	if allTerminal {
		run.Status = models.RunStatusCompleted
	}

	return run, nil
}
