package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/model"
)

func deviceIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("dev-%03d", i+1)
	}
	return ids
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Request{TicketID: "TICKET-001", ClientID: "client-a"}).Validate())
	assert.ErrorIs(t, (&Request{ClientID: "client-a"}).Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, (&Request{TicketID: "TICKET-001"}).Validate(), ErrInvalidRequest)
}

func TestGenerateDefaults65Devices(t *testing.T) {
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(65),
	}, nil)

	assert.Equal(t, model.PlanStatusPendingApproval, plan.Status)
	assert.Equal(t, 5, plan.CanarySize)
	assert.Equal(t, []int{30, 30}, plan.Batches)
	assert.Equal(t, 65, plan.DeviceCount)
	// Boundary scenario: every device is accounted for.
	assert.Equal(t, 65, plan.TotalCovered())
	assert.Equal(t, 6.0, plan.EstimatedDurationHours)
	assert.Equal(t, model.StrategyCanaryThenBatch, plan.Strategy)
	assert.NotEmpty(t, plan.PlanID)
	assert.False(t, plan.CreatedAt.IsZero())
}

func TestGenerateEmptyDeviceSet(t *testing.T) {
	plan := Generate(Request{ClientID: "client-a", TicketID: "TICKET-001"}, nil)

	assert.Equal(t, 0, plan.DeviceCount)
	assert.Equal(t, 0, plan.CanarySize)
	assert.Empty(t, plan.Batches)
	assert.Equal(t, model.PlanStatusPendingApproval, plan.Status)
}

func TestGenerateSmallFleets(t *testing.T) {
	tests := []struct {
		devices    int
		wantCanary int
		wantTotal  int
	}{
		{1, 1, 1},
		{3, 3, 3},
		{5, 5, 5},
		{6, 5, 6},
		{12, 5, 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d devices", tt.devices), func(t *testing.T) {
			plan := Generate(Request{
				ClientID:  "client-a",
				TicketID:  "TICKET-001",
				DeviceIDs: deviceIDs(tt.devices),
			}, nil)
			assert.Equal(t, tt.wantCanary, plan.CanarySize)
			assert.Equal(t, tt.wantTotal, plan.TotalCovered())
			assert.LessOrEqual(t, plan.TotalCovered(), plan.DeviceCount)
		})
	}
}

func TestGenerateOddRemainderSplit(t *testing.T) {
	// 20 devices: canary 5, remainder 15 split 8/7.
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(20),
	}, nil)
	assert.Equal(t, []int{8, 7}, plan.Batches)
	assert.Equal(t, 20, plan.TotalCovered())
}

func TestGenerateOverridesTakePrecedence(t *testing.T) {
	canary := 2
	duration := 3.5
	count := 40
	patches := 9
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(10),
		Overrides: Overrides{
			CanarySize:             &canary,
			Batches:                []int{20, 18},
			EstimatedDurationHours: &duration,
			DeviceCount:            &count,
			Patches:                &patches,
		},
	}, nil)

	assert.Equal(t, 2, plan.CanarySize)
	assert.Equal(t, []int{20, 18}, plan.Batches)
	assert.Equal(t, 3.5, plan.EstimatedDurationHours)
	assert.Equal(t, 40, plan.DeviceCount)
	assert.Equal(t, 9, plan.Patches)
}

func TestGenerateEnforcesCoverageInvariant(t *testing.T) {
	// Overrides that oversubscribe the fleet are clamped, never accepted.
	canary := 50
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(30),
		Overrides: Overrides{
			CanarySize: &canary,
			Batches:    []int{30, 30},
		},
	}, nil)

	assert.LessOrEqual(t, plan.TotalCovered(), plan.DeviceCount)
	assert.Equal(t, 30, plan.CanarySize)
	assert.Empty(t, plan.Batches)

	canary = 5
	plan = Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(40),
		Overrides: Overrides{
			CanarySize: &canary,
			Batches:    []int{30, 30},
		},
	}, nil)
	assert.Equal(t, []int{30, 5}, plan.Batches)
	assert.Equal(t, 40, plan.TotalCovered())
}

func TestGenerateUsesAdviceForNotesAndSafety(t *testing.T) {
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(65),
	}, &advisor.Advice{
		// Structural hints from the model are ignored by design.
		CanarySize:                 50,
		Batches:                    []int{1},
		HealthCheckIntervalMinutes: 15,
		RollbackThresholdPercent:   2.5,
		EstimatedDurationHours:     99,
		Notes:                      "patch web tier last",
	})

	assert.Equal(t, "patch web tier last", plan.Notes)
	assert.Equal(t, 15, plan.HealthCheckIntervalMinutes)
	assert.Equal(t, 2.5, plan.RollbackThresholdPercent)
	assert.Equal(t, 5, plan.CanarySize)
	assert.Equal(t, []int{30, 30}, plan.Batches)
	assert.Equal(t, 6.0, plan.EstimatedDurationHours)
}

func TestGenerateFallbackNotes(t *testing.T) {
	plan := Generate(Request{
		ClientID:  "client-a",
		TicketID:  "TICKET-001",
		DeviceIDs: deviceIDs(10),
	}, nil)
	require.Equal(t, advisor.DefaultNotes, plan.Notes)
}

func TestGenerateUniquePlanIDs(t *testing.T) {
	req := Request{ClientID: "client-a", TicketID: "TICKET-001", DeviceIDs: deviceIDs(5)}
	a := Generate(req, nil)
	b := Generate(req, nil)
	assert.NotEqual(t, a.PlanID, b.PlanID)
}
