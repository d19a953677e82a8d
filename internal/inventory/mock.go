package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Mock serves a fixed demo fleet and keeps created tickets in memory.
type Mock struct {
	mu      sync.Mutex
	devices []model.Device
	slas    map[string]model.SLAPolicy
	tickets map[string]*model.Ticket
	nextID  int
}

// NewMock returns a mock client seeded with the demo fleet.
func NewMock() *Mock {
	return &Mock{
		devices: []model.Device{
			{ID: "dev-001", Name: "WIN-SERVER-01", OS: "Windows Server 2022", ClientID: "client-a", SLATier: "critical", LastPatchDate: "2026-08-15", PendingPatches: 5, CriticalCVEs: 2},
			{ID: "dev-002", Name: "WIN-SERVER-02", OS: "Windows Server 2022", ClientID: "client-a", SLATier: "critical", LastPatchDate: "2026-08-15", PendingPatches: 3, CriticalCVEs: 1},
			{ID: "dev-003", Name: "LINUX-WEB-01", OS: "Ubuntu 22.04", ClientID: "client-b", SLATier: "standard", LastPatchDate: "2026-08-10", PendingPatches: 8, CriticalCVEs: 0},
			{ID: "dev-004", Name: "WIN-WORKSTATION-01", OS: "Windows 11", ClientID: "client-c", SLATier: "standard", LastPatchDate: "2026-08-01", PendingPatches: 12, CriticalCVEs: 3},
		},
		slas: map[string]model.SLAPolicy{
			"critical": {PatchWindow: "Saturday 1-3 AM", MaxExposureHours: 24, RollbackThreshold: 0.05},
			"standard": {PatchWindow: "Sunday 2-4 AM", MaxExposureHours: 72, RollbackThreshold: 0.10},
		},
		tickets: make(map[string]*model.Ticket),
	}
}

func (m *Mock) GetDevices(_ context.Context, clientID string) ([]model.Device, error) {
	if clientID == "" {
		return append([]model.Device(nil), m.devices...), nil
	}
	var out []model.Device
	for _, d := range m.devices {
		if d.ClientID == clientID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *Mock) GetDevice(_ context.Context, deviceID string) (*model.Device, error) {
	for _, d := range m.devices {
		if d.ID == deviceID {
			dev := d
			return &dev, nil
		}
	}
	return nil, fmt.Errorf("device %s not found", deviceID)
}

func (m *Mock) GetSLAPolicy(_ context.Context, tier string) (*model.SLAPolicy, error) {
	if sla, ok := m.slas[tier]; ok {
		return &sla, nil
	}
	sla := m.slas["standard"]
	return &sla, nil
}

func (m *Mock) GetMaintenanceWindows(_ context.Context, clientID string) ([]model.MaintenanceWindow, error) {
	return []model.MaintenanceWindow{
		{ClientID: clientID, Day: "Saturday", StartTime: "01:00", EndTime: "03:00", Timezone: "UTC"},
	}, nil
}

func (m *Mock) GetCVEFindings(_ context.Context, deviceID string) ([]model.CVEFinding, error) {
	device, err := m.GetDevice(context.Background(), deviceID)
	if err != nil {
		return nil, nil
	}
	cves := []model.CVEFinding{
		{CVEID: "CVE-2026-1234", Severity: "CRITICAL", CVSSScore: 9.8, Description: "Remote code execution vulnerability", AffectedDevice: deviceID},
		{CVEID: "CVE-2026-5678", Severity: "HIGH", CVSSScore: 8.2, Description: "Privilege escalation vulnerability", AffectedDevice: deviceID},
	}
	if device.CriticalCVEs < len(cves) {
		cves = cves[:device.CriticalCVEs]
	}
	return cves, nil
}

func (m *Mock) CreateTicket(_ context.Context, title, description, clientID string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC()
	ticket := &model.Ticket{
		ID:          fmt.Sprintf("TICKET-%d", m.nextID),
		Title:       title,
		Description: description,
		ClientID:    clientID,
		Status:      "open",
		Fields:      make(map[string]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.tickets[ticket.ID] = ticket
	logging.Event("ticket_created", "ticket_id", ticket.ID, "client_id", clientID)
	return ticket, nil
}

func (m *Mock) UpdateTicket(_ context.Context, ticketID string, updates map[string]string) (*model.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket, ok := m.tickets[ticketID]
	if !ok {
		// Webhook tickets originate in SuperOps, not here; accept them.
		now := time.Now().UTC()
		ticket = &model.Ticket{ID: ticketID, Status: "open", Fields: make(map[string]string), CreatedAt: now}
		m.tickets[ticketID] = ticket
	}
	for k, v := range updates {
		if k == "status" {
			ticket.Status = v
			continue
		}
		ticket.Fields[k] = v
	}
	ticket.UpdatedAt = time.Now().UTC()
	logging.Event("ticket_updated", "ticket_id", ticketID)
	return ticket, nil
}

func (m *Mock) LogTimeEntry(_ context.Context, ticketID string, hours float64, description string) error {
	logging.Event("time_entry_logged", "ticket_id", ticketID, "hours", hours, "description", description)
	return nil
}
