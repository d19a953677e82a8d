// Package planner constructs patch deployment plans: a canary wave, ordered
// batch sizes, a duration estimate and rationale notes.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/patchpilot-io/patchpilot/internal/advisor"
	"github.com/patchpilot-io/patchpilot/internal/model"
)

// ErrInvalidRequest marks client-input validation failures (missing
// identifiers). The API layer maps it to 400.
var ErrInvalidRequest = errors.New("invalid plan request")

// DefaultCanarySize is the demo default first-wave size, capped at the
// device count.
const DefaultCanarySize = 5

// DefaultEstimatedDurationHours is the duration estimate used when neither
// an override nor policy supplies one.
const DefaultEstimatedDurationHours = 6

// Request is the input to plan generation: the webhook payload plus optional
// dashboard overrides.
type Request struct {
	ClientID    string             `json:"client_id"`
	TicketID    string             `json:"ticket_id"`
	DeviceIDs   []string           `json:"device_ids"`
	CVEFindings []model.CVEFinding `json:"cve_findings"`

	Overrides Overrides `json:"-"`
}

// Overrides take precedence over computed defaults. Nil fields mean "use the
// default".
type Overrides struct {
	CanarySize             *int     `json:"canary_size,omitempty"`
	Batches                []int    `json:"batches,omitempty"`
	EstimatedDurationHours *float64 `json:"estimated_duration_hours,omitempty"`
	DeviceCount            *int     `json:"device_count,omitempty"`
	Patches                *int     `json:"patches,omitempty"`
}

// Validate checks the request for required identifiers.
func (r *Request) Validate() error {
	if r.TicketID == "" {
		return fmt.Errorf("%w: missing ticket_id", ErrInvalidRequest)
	}
	if r.ClientID == "" {
		return fmt.Errorf("%w: missing client_id", ErrInvalidRequest)
	}
	return nil
}

// Generate builds a plan from the request and advisory input. It never fails
// on an empty device set; the result is a minimal zero-device plan. Advice
// contributes the notes and safety-measure fields only, never the wave
// structure, so a degraded advisor still yields a structurally valid plan.
// The covered-device invariant (canary + batches <= device count) holds for
// every plan returned, including plans built from overrides.
func Generate(req Request, advice *advisor.Advice) *model.Plan {
	if advice == nil {
		advice, _ = advisor.Static{}.Advise(context.Background(), nil)
	}

	deviceCount := len(req.DeviceIDs)
	if req.Overrides.DeviceCount != nil {
		deviceCount = *req.Overrides.DeviceCount
	}
	if deviceCount < 0 {
		deviceCount = 0
	}

	canary := DefaultCanarySize
	if req.Overrides.CanarySize != nil {
		canary = *req.Overrides.CanarySize
	}
	if canary > deviceCount {
		canary = deviceCount
	}
	if canary < 0 {
		canary = 0
	}

	var batches []int
	if req.Overrides.Batches != nil {
		batches = append([]int(nil), req.Overrides.Batches...)
	} else {
		batches = splitBatches(deviceCount - canary)
	}
	batches = trimBatches(batches, deviceCount-canary)

	duration := float64(DefaultEstimatedDurationHours)
	if req.Overrides.EstimatedDurationHours != nil {
		duration = *req.Overrides.EstimatedDurationHours
	}

	patches := len(req.CVEFindings)
	if req.Overrides.Patches != nil {
		patches = *req.Overrides.Patches
	}

	return &model.Plan{
		PlanID:                     newPlanID(),
		ClientID:                   req.ClientID,
		TicketID:                   req.TicketID,
		Status:                     model.PlanStatusPendingApproval,
		CanarySize:                 canary,
		Batches:                    batches,
		EstimatedDurationHours:     duration,
		DeviceCount:                deviceCount,
		Patches:                    patches,
		Strategy:                   model.StrategyCanaryThenBatch,
		DevicesAffected:            append([]string(nil), req.DeviceIDs...),
		HealthCheckIntervalMinutes: advice.HealthCheckIntervalMinutes,
		RollbackThresholdPercent:   advice.RollbackThresholdPercent,
		Notes:                      advice.Notes,
		CreatedAt:                  time.Now().UTC(),
	}
}

// splitBatches divides the post-canary remainder into two roughly equal
// waves. 60 remaining devices become [30, 30]; an odd remainder puts the
// extra device in the first wave.
func splitBatches(remaining int) []int {
	if remaining <= 0 {
		return nil
	}
	first := (remaining + 1) / 2
	second := remaining - first
	if second == 0 {
		return []int{first}
	}
	return []int{first, second}
}

// trimBatches drops or shrinks trailing batches so their total never exceeds
// the device budget.
func trimBatches(batches []int, budget int) []int {
	if budget < 0 {
		budget = 0
	}
	var out []int
	for _, b := range batches {
		if b <= 0 {
			continue
		}
		if b > budget {
			b = budget
		}
		if b == 0 {
			break
		}
		out = append(out, b)
		budget -= b
	}
	return out
}

func newPlanID() string {
	return "PLAN-" + uuid.NewString()
}
