package store

import (
	"context"
	"sort"
	"sync"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Memory is an in-process Store used by the demo mode and tests. Records are
// copied on the way in and out so callers never share memory with the store.
type Memory struct {
	mu    sync.RWMutex
	plans map[string]model.Plan
	runs  map[string]model.Run
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		plans: make(map[string]model.Plan),
		runs:  make(map[string]model.Run),
	}
}

func (m *Memory) PutPlan(_ context.Context, plan *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.PlanID] = clonePlan(plan)
	return nil
}

func (m *Memory) GetPlan(_ context.Context, planID string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[planID]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePlan(&plan)
	return &out, nil
}

func (m *Memory) ListPlans(_ context.Context) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.plans))
	for _, plan := range m.plans {
		p := clonePlan(&plan)
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) PutRun(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RunID] = cloneRun(run)
	return nil
}

func (m *Memory) GetRun(_ context.Context, runID string) (*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRun(&run)
	return &out, nil
}

func (m *Memory) ListRuns(_ context.Context) ([]*model.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Run, 0, len(m.runs))
	for _, run := range m.runs {
		r := cloneRun(&run)
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func clonePlan(p *model.Plan) model.Plan {
	out := *p
	out.Batches = append([]int(nil), p.Batches...)
	out.DevicesAffected = append([]string(nil), p.DevicesAffected...)
	return out
}

func cloneRun(r *model.Run) model.Run {
	out := *r
	out.Progress = append([]model.PhaseProgress(nil), r.Progress...)
	return out
}
