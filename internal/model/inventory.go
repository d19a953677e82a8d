package model

import "time"

// Device is a managed endpoint from the inventory system.
type Device struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	OS             string `json:"os"`
	ClientID       string `json:"client_id"`
	SLATier        string `json:"sla_tier"`
	LastPatchDate  string `json:"last_patch_date"`
	PendingPatches int    `json:"pending_patches"`
	CriticalCVEs   int    `json:"critical_cves"`
}

// CVEFinding is a reported vulnerability affecting a device.
type CVEFinding struct {
	CVEID          string  `json:"cve_id"`
	Severity       string  `json:"severity"`
	CVSSScore      float64 `json:"cvss_score"`
	Description    string  `json:"description,omitempty"`
	AffectedDevice string  `json:"affected_device,omitempty"`
}

// SLAPolicy is the patching policy for an SLA tier.
type SLAPolicy struct {
	PatchWindow       string  `json:"patch_window"`
	MaxExposureHours  float64 `json:"max_exposure_hours"`
	RollbackThreshold float64 `json:"rollback_threshold"`
}

// MaintenanceWindow is a client's agreed patching window.
type MaintenanceWindow struct {
	ClientID  string `json:"client_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

// Ticket is a ticketing-system record the backend annotates with plan
// proposals and execution status.
type Ticket struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	ClientID    string            `json:"client_id"`
	Status      string            `json:"status"`
	Fields      map[string]string `json:"fields,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
