// Package advisor asks a Bedrock text model to rationalize and tune a patch
// plan. The advisor is advisory only: every failure mode falls back to static
// defaults and never blocks plan creation.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Advice is the model's suggestion for a plan. Structural fields are hints;
// the planner clamps them against the actual device count.
type Advice struct {
	CanarySize                 int     `json:"canary_size"`
	Batches                    []int   `json:"batches"`
	HealthCheckIntervalMinutes int     `json:"health_check_interval_minutes"`
	RollbackThresholdPercent   float64 `json:"rollback_threshold_percent"`
	EstimatedDurationHours     float64 `json:"estimated_duration_hours"`
	Notes                      string  `json:"notes"`
}

// Context is the planning context handed to the model.
type Context struct {
	ClientID           string
	Devices            []model.Device
	SLAPolicy          *model.SLAPolicy
	MaintenanceWindows []model.MaintenanceWindow
	CVEFindings        map[string][]model.CVEFinding
}

// Advisor produces plan advice. Implementations: Bedrock (live) and Static
// (fallback/demo).
type Advisor interface {
	Advise(ctx context.Context, planning *Context) (*Advice, error)
}

// Static returns fixed default advice and never fails. It doubles as the
// fallback when the Bedrock call errors or times out.
type Static struct{}

// DefaultNotes is the templated rationale used when no model rationale is
// available.
const DefaultNotes = "Default plan - canary first, then phased rollout"

func (Static) Advise(_ context.Context, planning *Context) (*Advice, error) {
	return &Advice{
		HealthCheckIntervalMinutes: 10,
		RollbackThresholdPercent:   5,
		EstimatedDurationHours:     6,
		Notes:                      DefaultNotes,
	}, nil
}

// BuildPrompt renders the planning context into the model prompt.
func BuildPrompt(planning *Context) string {
	var devices strings.Builder
	for _, d := range planning.Devices {
		fmt.Fprintf(&devices, "- %s (%s): %d patches, %d critical CVEs\n",
			d.Name, d.OS, d.PendingPatches, d.CriticalCVEs)
	}

	sla := planning.SLAPolicy
	if sla == nil {
		sla = &model.SLAPolicy{PatchWindow: "unspecified", MaxExposureHours: 72, RollbackThreshold: 0.10}
	}

	return fmt.Sprintf(`You are a patch management expert. Generate a safe, efficient patch plan based on this context:

DEVICES:
%s
SLA POLICY:
- Maintenance Window: %s
- Max Exposure Hours: %.0f
- Rollback Threshold: %.2f

REQUIREMENTS:
1. Use canary-first approach (small batch first)
2. Divide remaining devices into 2-3 batches
3. Include health checks between batches
4. Define rollback strategy
5. Estimate total duration

Respond with a JSON object containing:
{
    "canary_size": <number>,
    "batches": [<batch_size>, <batch_size>, ...],
    "health_check_interval_minutes": <number>,
    "rollback_threshold_percent": <number>,
    "estimated_duration_hours": <number>,
    "notes": "<safety notes>"
}`, devices.String(), sla.PatchWindow, sla.MaxExposureHours, sla.RollbackThreshold)
}
