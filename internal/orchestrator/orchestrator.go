// Package orchestrator hands approved plans to the execution engine and
// reports run state back. The phased rollout itself (canary, health checks,
// batches, rollback) runs in Step Functions; this package only starts
// executions, answers status queries, and services the per-batch callbacks
// the state machine makes through the API.
package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// RunState is the orchestrator's view of one execution.
type RunState struct {
	RunID     string     `json:"run_id"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at,omitempty"`
	Output    string     `json:"output,omitempty"`
}

// ExecutionOrchestrator starts plan execution and reports its state.
// Implementations: StepFunctions (live) and Local (demo mode).
type ExecutionOrchestrator interface {
	Start(ctx context.Context, plan *model.Plan) (runID string, err error)
	Status(ctx context.Context, runID string) (*RunState, error)
}

// phaseNames returns the run phase names for a plan: canary, batch_1, ...
func phaseNames(plan *model.Plan) []model.PhaseProgress {
	phases := []model.PhaseProgress{
		{Name: "canary", Status: model.PhaseStatusQueued, Devices: plan.CanarySize},
	}
	for i, size := range plan.Batches {
		phases = append(phases, model.PhaseProgress{
			Name:    "batch_" + strconv.Itoa(i+1),
			Status:  model.PhaseStatusQueued,
			Devices: size,
		})
	}
	return phases
}
