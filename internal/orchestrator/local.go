package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/store"
)

// Local synthesizes runs directly in the store. Used by demo mode, where no
// state machine exists; the run starts with the canary in progress and is
// advanced by the internal callback endpoints.
type Local struct {
	runs store.RunStore
}

// NewLocal returns the demo orchestrator.
func NewLocal(runs store.RunStore) *Local {
	return &Local{runs: runs}
}

func (l *Local) Start(ctx context.Context, plan *model.Plan) (string, error) {
	now := time.Now().UTC()
	estimated := now.Add(time.Duration(plan.EstimatedDurationHours * float64(time.Hour)))

	run := &model.Run{
		RunID:               "PATCHRUN-" + uuid.NewString(),
		PlanID:              plan.PlanID,
		ClientID:            plan.ClientID,
		Status:              model.RunStatusInProgress,
		CurrentBatch:        "canary",
		Progress:            phaseNames(plan),
		StartedAt:           now,
		EstimatedCompletion: &estimated,
	}
	if len(run.Progress) > 0 {
		run.Progress[0].Status = model.PhaseStatusInProgress
	}
	if err := l.runs.PutRun(ctx, run); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}

	logging.Event("execution_started", "run_id", run.RunID, "plan_id", plan.PlanID, "mode", "local")
	return run.RunID, nil
}

func (l *Local) Status(ctx context.Context, runID string) (*RunState, error) {
	run, err := l.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	state := &RunState{
		RunID:     run.RunID,
		Status:    run.Status,
		StartedAt: run.StartedAt,
	}
	if run.CompletedAt != nil {
		stopped := *run.CompletedAt
		state.StoppedAt = &stopped
	}
	return state, nil
}
