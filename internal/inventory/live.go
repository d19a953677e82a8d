package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patchpilot-io/patchpilot/internal/model"
)

// Live is an HTTP client against the SuperOps REST API. It performs
// single-attempt JSON calls; callers decide how to degrade on failure.
type Live struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewLive returns a live client for the given API endpoint.
func NewLive(baseURL, apiKey string) *Live {
	return &Live{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (l *Live) GetDevices(ctx context.Context, clientID string) ([]model.Device, error) {
	var out struct {
		Devices []model.Device `json:"devices"`
	}
	q := url.Values{}
	if clientID != "" {
		q.Set("client_id", clientID)
	}
	if err := l.get(ctx, "/v1/devices", q, &out); err != nil {
		return nil, err
	}
	return out.Devices, nil
}

func (l *Live) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	var device model.Device
	if err := l.get(ctx, "/v1/devices/"+url.PathEscape(deviceID), nil, &device); err != nil {
		return nil, err
	}
	return &device, nil
}

func (l *Live) GetSLAPolicy(ctx context.Context, tier string) (*model.SLAPolicy, error) {
	var sla model.SLAPolicy
	if err := l.get(ctx, "/v1/sla-policies/"+url.PathEscape(tier), nil, &sla); err != nil {
		return nil, err
	}
	return &sla, nil
}

func (l *Live) GetMaintenanceWindows(ctx context.Context, clientID string) ([]model.MaintenanceWindow, error) {
	var out struct {
		Windows []model.MaintenanceWindow `json:"windows"`
	}
	q := url.Values{"client_id": []string{clientID}}
	if err := l.get(ctx, "/v1/maintenance-windows", q, &out); err != nil {
		return nil, err
	}
	return out.Windows, nil
}

func (l *Live) GetCVEFindings(ctx context.Context, deviceID string) ([]model.CVEFinding, error) {
	var out struct {
		Findings []model.CVEFinding `json:"findings"`
	}
	if err := l.get(ctx, "/v1/devices/"+url.PathEscape(deviceID)+"/cves", nil, &out); err != nil {
		return nil, err
	}
	return out.Findings, nil
}

func (l *Live) CreateTicket(ctx context.Context, title, description, clientID string) (*model.Ticket, error) {
	body := map[string]string{"title": title, "description": description, "client_id": clientID}
	var ticket model.Ticket
	if err := l.post(ctx, "/v1/tickets", body, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (l *Live) UpdateTicket(ctx context.Context, ticketID string, updates map[string]string) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := l.post(ctx, "/v1/tickets/"+url.PathEscape(ticketID), updates, &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (l *Live) LogTimeEntry(ctx context.Context, ticketID string, hours float64, description string) error {
	body := map[string]any{"hours": hours, "description": description}
	return l.post(ctx, "/v1/tickets/"+url.PathEscape(ticketID)+"/time-entries", body, nil)
}

func (l *Live) get(ctx context.Context, path string, query url.Values, out any) error {
	u := l.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return l.do(req, out)
}

func (l *Live) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return l.do(req, out)
}

func (l *Live) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("superops request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("superops %s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("superops response decode failed: %w", err)
	}
	return nil
}
