// Package agent coordinates the webhook path: fetch planning context, ask
// the advisor, generate the plan, persist it and propose it on the ticket.
package agent

import (
	"context"
	"fmt"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/planner"
	"github.com/patchpilot-io/patchpilot/internal/store"
	"github.com/patchpilot-io/patchpilot/internal/ticket"
)

// Agent turns vulnerability webhooks into pending patch plans.
type Agent struct {
	advisor   advisor.Advisor
	inventory inventory.Client
	plans     store.PlanStore
	tickets   *ticket.Manager
}

// New constructs the agent.
func New(adv advisor.Advisor, inv inventory.Client, plans store.PlanStore, tickets *ticket.Manager) *Agent {
	return &Agent{advisor: adv, inventory: inv, plans: plans, tickets: tickets}
}

// ProcessWebhook handles one inbound finding notification. Re-delivered
// webhooks for a ticket that already has an open plan return that plan
// instead of minting a duplicate. The advisor and ticket update are both
// best-effort; only validation and the plan write can fail the call.
func (a *Agent) ProcessWebhook(ctx context.Context, req planner.Request) (*model.Plan, error) {
	logging.Event("webhook_received",
		"ticket_id", req.TicketID,
		"client_id", req.ClientID,
		"device_count", len(req.DeviceIDs))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if existing := a.openPlanForTicket(ctx, req.TicketID); existing != nil {
		logging.Event("webhook_deduplicated", "ticket_id", req.TicketID, "plan_id", existing.PlanID)
		return existing, nil
	}

	advice := a.advise(ctx, req)
	plan := planner.Generate(req, advice)

	if err := a.plans.PutPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}
	logging.Event("plan_generated",
		"plan_id", plan.PlanID,
		"canary_size", plan.CanarySize,
		"batch_count", len(plan.Batches))

	if err := a.tickets.PostPlanProposal(ctx, plan); err != nil {
		logging.Warn("plan stored but ticket proposal failed", "plan_id", plan.PlanID, "error", err)
	}
	return plan, nil
}

// advise gathers planning context and asks the advisor. Any failure yields
// static advice; the plan is produced regardless.
func (a *Agent) advise(ctx context.Context, req planner.Request) *advisor.Advice {
	planning := &advisor.Context{ClientID: req.ClientID}

	devices, err := a.inventory.GetDevices(ctx, req.ClientID)
	if err != nil {
		logging.Warn("device inventory unavailable", "client_id", req.ClientID, "error", err)
	} else {
		planning.Devices = devices
	}

	if sla, err := a.inventory.GetSLAPolicy(ctx, "critical"); err == nil {
		planning.SLAPolicy = sla
	}
	if windows, err := a.inventory.GetMaintenanceWindows(ctx, req.ClientID); err == nil {
		planning.MaintenanceWindows = windows
	}

	findings := make(map[string][]model.CVEFinding)
	for _, deviceID := range req.DeviceIDs {
		if cves, err := a.inventory.GetCVEFindings(ctx, deviceID); err == nil && len(cves) > 0 {
			findings[deviceID] = cves
		}
	}
	planning.CVEFindings = findings

	advice, err := a.advisor.Advise(ctx, planning)
	if err != nil {
		logging.Warn("advisor unavailable, using defaults", "error", err)
		advice, _ = advisor.Static{}.Advise(ctx, planning)
	}
	return advice
}

func (a *Agent) openPlanForTicket(ctx context.Context, ticketID string) *model.Plan {
	plans, err := a.plans.ListPlans(ctx)
	if err != nil {
		return nil
	}
	for _, p := range plans {
		if p.TicketID == ticketID && p.Open() {
			return p
		}
	}
	return nil
}
