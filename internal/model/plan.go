package model

import "time"

// Plan status values. A plan is never deleted, only status-transitioned.
const (
	PlanStatusPendingApproval = "pending_approval"
	PlanStatusApproved        = "approved"
	PlanStatusRejected        = "rejected"
)

// StrategyCanaryThenBatch is the only rollout strategy currently produced:
// a small canary wave, then the remaining devices in ordered batches.
const StrategyCanaryThenBatch = "canary_then_batch"

// Plan is a patch deployment plan generated for a ticket. CanarySize plus the
// sum of Batches never exceeds DeviceCount.
type Plan struct {
	PlanID   string `json:"plan_id" dynamodbav:"plan_id"`
	ClientID string `json:"client_id" dynamodbav:"client_id"`
	TicketID string `json:"ticket_id" dynamodbav:"ticket_id"`
	Status   string `json:"status" dynamodbav:"status"`

	CanarySize             int     `json:"canary_size" dynamodbav:"canary_size"`
	Batches                []int   `json:"batches" dynamodbav:"batches"`
	EstimatedDurationHours float64 `json:"estimated_duration_hours" dynamodbav:"estimated_duration_hours"`
	DeviceCount            int     `json:"device_count" dynamodbav:"device_count"`
	Patches                int     `json:"patches" dynamodbav:"patches"`

	Strategy                   string   `json:"strategy" dynamodbav:"strategy"`
	DevicesAffected            []string `json:"devices_affected,omitempty" dynamodbav:"devices_affected,omitempty"`
	HealthCheckIntervalMinutes int      `json:"health_check_interval_minutes" dynamodbav:"health_check_interval_minutes"`
	RollbackThresholdPercent   float64  `json:"rollback_threshold_percent" dynamodbav:"rollback_threshold_percent"`

	Notes string `json:"notes" dynamodbav:"notes"`

	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty" dynamodbav:"approved_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty" dynamodbav:"approved_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty" dynamodbav:"rejected_at,omitempty"`
	RejectedBy      string     `json:"rejected_by,omitempty" dynamodbav:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" dynamodbav:"rejection_reason,omitempty"`
}

// TotalCovered returns the number of devices the plan's waves account for.
func (p *Plan) TotalCovered() int {
	total := p.CanarySize
	for _, b := range p.Batches {
		total += b
	}
	return total
}

// Open reports whether the plan is still awaiting an approval decision.
func (p *Plan) Open() bool {
	return p.Status == PlanStatusPendingApproval
}
