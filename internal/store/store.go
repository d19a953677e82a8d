package store

import (
	"context"
	"errors"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// ErrNotFound is returned when a referenced plan or run does not exist.
var ErrNotFound = errors.New("record not found")

// PlanStore persists patch plans. Plans are written whole; callers mutate a
// copy and put it back.
type PlanStore interface {
	PutPlan(ctx context.Context, plan *model.Plan) error
	GetPlan(ctx context.Context, planID string) (*model.Plan, error)
	ListPlans(ctx context.Context) ([]*model.Plan, error)
}

// RunStore persists patch runs.
type RunStore interface {
	PutRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context) ([]*model.Run, error)
}

// Store is the full persistence surface the server depends on.
type Store interface {
	PlanStore
	RunStore
}
