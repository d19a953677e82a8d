package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTotalCovered(t *testing.T) {
	p := &Plan{CanarySize: 5, Batches: []int{30, 30}, DeviceCount: 65}
	assert.Equal(t, 65, p.TotalCovered())

	empty := &Plan{}
	assert.Equal(t, 0, empty.TotalCovered())
}

func TestPlanOpen(t *testing.T) {
	assert.True(t, (&Plan{Status: PlanStatusPendingApproval}).Open())
	assert.False(t, (&Plan{Status: PlanStatusApproved}).Open())
	assert.False(t, (&Plan{Status: PlanStatusRejected}).Open())
}

func TestPlanJSONRoundTrip(t *testing.T) {
	approved := time.Date(2026, 8, 30, 12, 30, 0, 0, time.UTC)
	original := Plan{
		PlanID:                     "PLAN-001",
		ClientID:                   "client-a",
		TicketID:                   "TICKET-001",
		Status:                     PlanStatusApproved,
		CanarySize:                 5,
		Batches:                    []int{30, 30},
		EstimatedDurationHours:     6,
		DeviceCount:                65,
		Patches:                    12,
		Strategy:                   StrategyCanaryThenBatch,
		DevicesAffected:            []string{"dev-001", "dev-002"},
		HealthCheckIntervalMinutes: 10,
		RollbackThresholdPercent:   5,
		Notes:                      "canary first, then phased rollout",
		CreatedAt:                  time.Date(2026, 8, 30, 11, 0, 0, 0, time.UTC),
		ApprovedAt:                 &approved,
		ApprovedBy:                 "ops@example.com",
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Plan
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestRunRolledBack(t *testing.T) {
	r := &Run{Progress: []PhaseProgress{
		{Name: "canary", Status: PhaseStatusCompleted, Devices: 5, Successful: 5},
		{Name: "batch_1", Status: PhaseStatusRolledBack, Devices: 30, Successful: 12},
	}}
	assert.True(t, r.RolledBack())

	clean := &Run{Progress: []PhaseProgress{
		{Name: "canary", Status: PhaseStatusCompleted, Devices: 5, Successful: 5},
	}}
	assert.False(t, clean.RolledBack())
	assert.False(t, (&Run{}).RolledBack())
}
