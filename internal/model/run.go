package model

import "time"

// Run status values.
const (
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"
)

// Phase status values within a run's progress.
const (
	PhaseStatusQueued     = "queued"
	PhaseStatusInProgress = "in_progress"
	PhaseStatusCompleted  = "completed"
	PhaseStatusRolledBack = "rolled_back"
)

// PhaseProgress is the state of one rollout wave (canary, batch_1, ...).
type PhaseProgress struct {
	Name       string `json:"name" dynamodbav:"name"`
	Status     string `json:"status" dynamodbav:"status"`
	Devices    int    `json:"devices" dynamodbav:"devices"`
	Successful int    `json:"successful" dynamodbav:"successful"`
}

// Run is one execution of an approved plan. DevicesPatched, SuccessRate and
// DurationHours are set once the run completes; a completed run is immutable.
type Run struct {
	RunID    string `json:"run_id" dynamodbav:"run_id"`
	PlanID   string `json:"plan_id" dynamodbav:"plan_id"`
	ClientID string `json:"client_id" dynamodbav:"client_id"`
	Status   string `json:"status" dynamodbav:"status"`

	CurrentBatch string          `json:"current_batch,omitempty" dynamodbav:"current_batch,omitempty"`
	Progress     []PhaseProgress `json:"progress" dynamodbav:"progress"`

	DevicesPatched int     `json:"devices_patched" dynamodbav:"devices_patched"`
	SuccessRate    float64 `json:"success_rate" dynamodbav:"success_rate"`
	DurationHours  float64 `json:"duration_hours" dynamodbav:"duration_hours"`

	StartedAt           time.Time  `json:"started_at" dynamodbav:"started_at"`
	CompletedAt         *time.Time `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty" dynamodbav:"estimated_completion,omitempty"`
}

// RolledBack reports whether any phase of the run was rolled back.
func (r *Run) RolledBack() bool {
	for _, p := range r.Progress {
		if p.Status == PhaseStatusRolledBack {
			return true
		}
	}
	return false
}
