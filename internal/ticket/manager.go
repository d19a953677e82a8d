// Package ticket keeps the ticketing system in step with the plan lifecycle:
// proposal posts, execution status notes, technician time, and the
// post-patch report.
package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Manager annotates tickets through the inventory client. All methods are
// best-effort from the caller's point of view; a ticket update never blocks
// the plan lifecycle.
type Manager struct {
	client inventory.Client
}

// NewManager returns a ticket manager over the given client.
func NewManager(client inventory.Client) *Manager {
	return &Manager{client: client}
}

// PostPlanProposal writes the plan summary and approval actions onto the
// ticket and moves it to pending_approval.
func (m *Manager) PostPlanProposal(ctx context.Context, plan *model.Plan) error {
	var batches []string
	for _, b := range plan.Batches {
		batches = append(batches, fmt.Sprintf("%d", b))
	}

	summary := fmt.Sprintf(`**PATCHPILOT PLAN PROPOSAL**

Plan ID: %s
Generated: %s

**Execution Strategy:**
- Canary Batch: %d devices
- Batches: [%s]

**Safety Measures:**
- Health Check Interval: %d minutes
- Rollback Threshold: %.1f%% failure rate
- Estimated Duration: %.1f hours

**Notes:**
%s

---
**Actions:**
- [APPROVE] - Start execution
- [REQUEST CHANGES] - Modify plan
- [DECLINE] - Reject plan
`, plan.PlanID, plan.CreatedAt.Format(time.RFC3339),
		plan.CanarySize, strings.Join(batches, ", "),
		plan.HealthCheckIntervalMinutes, plan.RollbackThresholdPercent,
		plan.EstimatedDurationHours, plan.Notes)

	_, err := m.client.UpdateTicket(ctx, plan.TicketID, map[string]string{
		"status":        "pending_approval",
		"plan_proposal": summary,
		"plan_id":       plan.PlanID,
	})
	if err != nil {
		return fmt.Errorf("failed to post plan proposal to ticket %s: %w", plan.TicketID, err)
	}
	logging.Event("plan_proposal_posted", "ticket_id", plan.TicketID, "plan_id", plan.PlanID)
	return nil
}

// UpdateExecutionStatus notes the run's current state on the ticket.
func (m *Manager) UpdateExecutionStatus(ctx context.Context, ticketID string, run *model.Run) error {
	status := fmt.Sprintf(`**EXECUTION STATUS UPDATE**

Run ID: %s
Status: %s
Current Batch: %s
Updated: %s
`, run.RunID, strings.ToUpper(run.Status), run.CurrentBatch, time.Now().UTC().Format(time.RFC3339))

	_, err := m.client.UpdateTicket(ctx, ticketID, map[string]string{
		"status":           "executing_" + run.Status,
		"execution_status": status,
		"run_id":           run.RunID,
	})
	if err != nil {
		return fmt.Errorf("failed to update execution status on ticket %s: %w", ticketID, err)
	}
	logging.Event("execution_status_updated", "ticket_id", ticketID, "run_id", run.RunID, "status", run.Status)
	return nil
}

// LogTechnicianTime records automated technician time on the ticket.
func (m *Manager) LogTechnicianTime(ctx context.Context, ticketID string, hours float64, description string) error {
	if description == "" {
		description = "Patch execution"
	}
	if err := m.client.LogTimeEntry(ctx, ticketID, hours, description); err != nil {
		return fmt.Errorf("failed to log time on ticket %s: %w", ticketID, err)
	}
	logging.Event("technician_time_logged", "ticket_id", ticketID, "hours", hours)
	return nil
}

// Report is the post-patch summary posted to the ticket when a run
// completes.
type Report struct {
	RunID                string  `json:"run_id"`
	TicketID             string  `json:"ticket_id"`
	GeneratedAt          string  `json:"generated_at"`
	DevicesPatched       int     `json:"devices_patched"`
	DeviceCount          int     `json:"device_count"`
	SuccessRate          float64 `json:"success_rate_percent"`
	DurationHours        float64 `json:"duration_hours"`
	ExposureHoursReduced float64 `json:"exposure_hours_reduced"`
	Rollbacks            int     `json:"rollbacks"`
	Summary              string  `json:"summary"`
}

// GeneratePostPatchReport builds the completion report, posts it to the
// ticket, and closes the ticket out.
func (m *Manager) GeneratePostPatchReport(ctx context.Context, plan *model.Plan, run *model.Run, exposureHoursReduced float64) (*Report, error) {
	rollbacks := 0
	if run.RolledBack() {
		rollbacks = 1
	}

	outcome := "SUCCESS"
	switch {
	case run.SuccessRate < 80:
		outcome = "FAILED"
	case run.SuccessRate < 95:
		outcome = "PARTIAL SUCCESS"
	}

	report := &Report{
		RunID:                run.RunID,
		TicketID:             plan.TicketID,
		GeneratedAt:          time.Now().UTC().Format(time.RFC3339),
		DevicesPatched:       run.DevicesPatched,
		DeviceCount:          plan.DeviceCount,
		SuccessRate:          run.SuccessRate,
		DurationHours:        run.DurationHours,
		ExposureHoursReduced: exposureHoursReduced,
		Rollbacks:            rollbacks,
	}
	report.Summary = fmt.Sprintf(`**POST-PATCH REPORT**

Run: %s
Duration: %.1f hours
Devices Patched: %d/%d
Success Rate: %.1f%%
Exposure Hours Reduced: %.1f
Rollbacks: %d

Status: %s
`, run.RunID, run.DurationHours, run.DevicesPatched, plan.DeviceCount,
		run.SuccessRate, exposureHoursReduced, rollbacks, outcome)

	_, err := m.client.UpdateTicket(ctx, plan.TicketID, map[string]string{
		"status":            "completed",
		"post_patch_report": report.Summary,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post report to ticket %s: %w", plan.TicketID, err)
	}
	logging.Event("post_patch_report_generated",
		"run_id", run.RunID,
		"ticket_id", plan.TicketID,
		"success_rate", run.SuccessRate)
	return report, nil
}
