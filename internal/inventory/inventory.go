// Package inventory talks to the SuperOps RMM: device inventory, SLA
// policies, maintenance windows, CVE findings and ticket updates.
package inventory

import (
	"context"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Client is the capability surface the planner and ticket manager depend on.
// Two implementations exist: Mock (demo fixtures) and Live (HTTP), selected
// at construction time.
type Client interface {
	GetDevices(ctx context.Context, clientID string) ([]model.Device, error)
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
	GetSLAPolicy(ctx context.Context, tier string) (*model.SLAPolicy, error)
	GetMaintenanceWindows(ctx context.Context, clientID string) ([]model.MaintenanceWindow, error)
	GetCVEFindings(ctx context.Context, deviceID string) ([]model.CVEFinding, error)

	CreateTicket(ctx context.Context, title, description, clientID string) (*model.Ticket, error)
	UpdateTicket(ctx context.Context, ticketID string, updates map[string]string) (*model.Ticket, error)
	LogTimeEntry(ctx context.Context, ticketID string, hours float64, description string) error
}
