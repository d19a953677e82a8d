package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/planner"
	"github.com/patchpilot-io/patchpilot/internal/store"
	"github.com/patchpilot-io/patchpilot/internal/ticket"
)

type failingAdvisor struct{}

func (failingAdvisor) Advise(context.Context, *advisor.Context) (*advisor.Advice, error) {
	return nil, fmt.Errorf("bedrock unavailable")
}

func newTestAgent(adv advisor.Advisor) (*Agent, *store.Memory, *inventory.Mock) {
	mem := store.NewMemory()
	inv := inventory.NewMock()
	return New(adv, inv, mem, ticket.NewManager(inv)), mem, inv
}

func webhookRequest() planner.Request {
	return planner.Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: []string{"dev-001", "dev-002"},
		CVEFindings: []model.CVEFinding{
			{CVEID: "CVE-2026-1234", Severity: "CRITICAL", CVSSScore: 9.8},
		},
	}
}

func TestProcessWebhookCreatesPendingPlan(t *testing.T) {
	a, mem, inv := newTestAgent(advisor.Static{})
	ctx := context.Background()

	plan, err := a.ProcessWebhook(ctx, webhookRequest())
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusPendingApproval, plan.Status)
	assert.Equal(t, 2, plan.DeviceCount)
	assert.Equal(t, 2, plan.CanarySize)
	assert.LessOrEqual(t, plan.TotalCovered(), plan.DeviceCount)

	stored, err := mem.GetPlan(ctx, plan.PlanID)
	require.NoError(t, err)
	assert.Equal(t, plan.PlanID, stored.PlanID)

	// Proposal landed on the ticket.
	tk, err := inv.UpdateTicket(ctx, "TICKET-001", nil)
	require.NoError(t, err)
	assert.Equal(t, "pending_approval", tk.Status)
	assert.Contains(t, tk.Fields["plan_proposal"], plan.PlanID)
}

func TestProcessWebhookValidation(t *testing.T) {
	a, _, _ := newTestAgent(advisor.Static{})

	_, err := a.ProcessWebhook(context.Background(), planner.Request{ClientID: "client-a"})
	assert.ErrorIs(t, err, planner.ErrInvalidRequest)

	_, err = a.ProcessWebhook(context.Background(), planner.Request{TicketID: "TICKET-001"})
	assert.ErrorIs(t, err, planner.ErrInvalidRequest)
}

func TestProcessWebhookEmptyDeviceSet(t *testing.T) {
	a, _, _ := newTestAgent(advisor.Static{})

	plan, err := a.ProcessWebhook(context.Background(), planner.Request{
		ClientID: "client-a",
		TicketID: "TICKET-002",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, plan.DeviceCount)
	assert.Equal(t, 0, plan.CanarySize)
	assert.Empty(t, plan.Batches)
}

func TestProcessWebhookAdvisorFailureDegrades(t *testing.T) {
	a, _, _ := newTestAgent(failingAdvisor{})

	plan, err := a.ProcessWebhook(context.Background(), webhookRequest())
	require.NoError(t, err)
	assert.Equal(t, advisor.DefaultNotes, plan.Notes)
}

func TestProcessWebhookDeduplicatesOpenTicket(t *testing.T) {
	a, mem, _ := newTestAgent(advisor.Static{})
	ctx := context.Background()

	first, err := a.ProcessWebhook(ctx, webhookRequest())
	require.NoError(t, err)

	second, err := a.ProcessWebhook(ctx, webhookRequest())
	require.NoError(t, err)
	assert.Equal(t, first.PlanID, second.PlanID)

	// Once the plan is decided, a new webhook mints a fresh plan.
	first.Status = model.PlanStatusApproved
	require.NoError(t, mem.PutPlan(ctx, first))

	third, err := a.ProcessWebhook(ctx, webhookRequest())
	require.NoError(t, err)
	assert.NotEqual(t, first.PlanID, third.PlanID)
}
