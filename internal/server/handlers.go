package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/model"
	"github.com/patchpilot-io/patchpilot/internal/planner"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "patchpilot",
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	var req planner.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	plan, err := s.agent.ProcessWebhook(r.Context(), req)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logging.Error("webhook processing failed", "source", source, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Event("webhook_processed", "source", source, "plan_id", plan.PlanID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "plan_created",
		"plan":   plan,
	})
}

func (s *Server) handleOpenPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlans(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	open := []*model.Plan{}
	for _, p := range plans {
		if p.Open() {
			open = append(open, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open_plans": open,
		"total":      len(open),
	})
}

func (s *Server) handlePlanHistory(w http.ResponseWriter, r *http.Request) {
	plans, err := s.store.ListPlans(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	all := []*model.Plan{}
	pending, approved, rejected := 0, 0, 0
	for _, p := range plans {
		all = append(all, p)
		switch p.Status {
		case model.PlanStatusPendingApproval:
			pending++
		case model.PlanStatusApproved:
			approved++
		case model.PlanStatusRejected:
			rejected++
		}
	}
	// Newest plans first for the dashboard.
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"all_plans": all,
		"total":     len(all),
		"pending":   pending,
		"approved":  approved,
		"rejected":  rejected,
	})
}

// generatePlanRequest is the dashboard's manual plan request. It carries the
// webhook payload fields plus the structural overrides.
type generatePlanRequest struct {
	ClientID    string             `json:"client_id"`
	TicketID    string             `json:"ticket_id"`
	DeviceIDs   []string           `json:"device_ids"`
	CVEFindings []model.CVEFinding `json:"cve_findings"`

	CanarySize             *int     `json:"canary_size"`
	Batches                []int    `json:"batches"`
	EstimatedDurationHours *float64 `json:"estimated_duration_hours"`
	DeviceCount            *int     `json:"device_count"`
	Patches                *int     `json:"patches"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var body generatePlanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
	}
	if body.ClientID == "" {
		body.ClientID = "client-a"
	}
	if body.TicketID == "" {
		body.TicketID = "TICKET-" + uuid.NewString()
	}

	req := planner.Request{
		ClientID:    body.ClientID,
		TicketID:    body.TicketID,
		DeviceIDs:   body.DeviceIDs,
		CVEFindings: body.CVEFindings,
		Overrides: planner.Overrides{
			CanarySize:             body.CanarySize,
			Batches:                body.Batches,
			EstimatedDurationHours: body.EstimatedDurationHours,
			DeviceCount:            body.DeviceCount,
			Patches:                body.Patches,
		},
	}

	plan, err := s.agent.ProcessWebhook(r.Context(), req)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status": "created",
		"plan":   plan,
	})
}

// updatePlanRequest edits a pending plan. Nil fields are left unchanged.
type updatePlanRequest struct {
	PlanID string `json:"plan_id"`

	CanarySize                 *int     `json:"canary_size"`
	Batches                    []int    `json:"batches"`
	EstimatedDurationHours     *float64 `json:"estimated_duration_hours"`
	DeviceCount                *int     `json:"device_count"`
	Patches                    *int     `json:"patches"`
	HealthCheckIntervalMinutes *int     `json:"health_check_interval_minutes"`
	RollbackThresholdPercent   *float64 `json:"rollback_threshold_percent"`
	Notes                      *string  `json:"notes"`
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	var body updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if body.PlanID == "" {
		writeError(w, http.StatusBadRequest, "missing plan_id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), body.PlanID)
	if err != nil {
		storeError(w, err)
		return
	}

	if body.CanarySize != nil {
		plan.CanarySize = *body.CanarySize
	}
	if body.Batches != nil {
		plan.Batches = append([]int(nil), body.Batches...)
	}
	if body.EstimatedDurationHours != nil {
		plan.EstimatedDurationHours = *body.EstimatedDurationHours
	}
	if body.DeviceCount != nil {
		plan.DeviceCount = *body.DeviceCount
	}
	if body.Patches != nil {
		plan.Patches = *body.Patches
	}
	if body.HealthCheckIntervalMinutes != nil {
		plan.HealthCheckIntervalMinutes = *body.HealthCheckIntervalMinutes
	}
	if body.RollbackThresholdPercent != nil {
		plan.RollbackThresholdPercent = *body.RollbackThresholdPercent
	}
	if body.Notes != nil {
		plan.Notes = *body.Notes
	}

	if plan.TotalCovered() > plan.DeviceCount {
		writeError(w, http.StatusBadRequest, "canary and batches exceed device count")
		return
	}

	if err := s.store.PutPlan(r.Context(), plan); err != nil {
		storeError(w, err)
		return
	}
	logging.Event("plan_updated", "plan_id", plan.PlanID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "updated",
		"plan":   plan,
	})
}

type decisionRequest struct {
	PlanID     string `json:"plan_id"`
	ApprovedBy string `json:"approved_by"`
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func (s *Server) handleApprovePlan(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if body.PlanID == "" {
		writeError(w, http.StatusBadRequest, "missing plan_id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), body.PlanID)
	if err != nil {
		storeError(w, err)
		return
	}

	// Re-approving is a no-op; no second execution is started.
	if plan.Status == model.PlanStatusApproved {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "approved",
			"plan_id": plan.PlanID,
			"message": "Plan already approved",
		})
		return
	}

	now := time.Now().UTC()
	plan.Status = model.PlanStatusApproved
	plan.ApprovedAt = &now
	plan.ApprovedBy = body.ApprovedBy
	if plan.ApprovedBy == "" {
		plan.ApprovedBy = "user@company.com"
	}
	plan.RejectedAt = nil
	plan.RejectedBy = ""
	plan.RejectionReason = ""

	if err := s.store.PutPlan(r.Context(), plan); err != nil {
		storeError(w, err)
		return
	}
	logging.Event("plan_approved", "plan_id", plan.PlanID, "approved_by", plan.ApprovedBy)

	runID, err := s.orch.Start(r.Context(), plan)
	if err != nil {
		// Approval already stuck; execution can be retried out of band.
		logging.Error("failed to start execution", "plan_id", plan.PlanID, "error", err)
	} else if s.tickets != nil {
		if run, rerr := s.store.GetRun(r.Context(), runID); rerr == nil {
			if terr := s.tickets.UpdateExecutionStatus(r.Context(), plan.TicketID, run); terr != nil {
				logging.Warn("ticket update failed after approval", "ticket_id", plan.TicketID, "error", terr)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "approved",
		"plan_id": plan.PlanID,
		"run_id":  runID,
		"message": "Plan approved, execution started",
	})
}

func (s *Server) handleRejectPlan(w http.ResponseWriter, r *http.Request) {
	var body decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if body.PlanID == "" {
		writeError(w, http.StatusBadRequest, "missing plan_id")
		return
	}

	plan, err := s.store.GetPlan(r.Context(), body.PlanID)
	if err != nil {
		storeError(w, err)
		return
	}

	if plan.Status == model.PlanStatusRejected {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "rejected",
			"plan_id": plan.PlanID,
			"message": "Plan already rejected",
		})
		return
	}

	now := time.Now().UTC()
	plan.Status = model.PlanStatusRejected
	plan.RejectedAt = &now
	plan.RejectedBy = body.RejectedBy
	if plan.RejectedBy == "" {
		plan.RejectedBy = "user@company.com"
	}
	plan.RejectionReason = body.Reason
	if plan.RejectionReason == "" {
		plan.RejectionReason = "No reason provided"
	}

	if err := s.store.PutPlan(r.Context(), plan); err != nil {
		storeError(w, err)
		return
	}
	logging.Event("plan_rejected", "plan_id", plan.PlanID, "reason", plan.RejectionReason)

	if s.inventory != nil {
		if _, terr := s.inventory.UpdateTicket(r.Context(), plan.TicketID, map[string]string{
			"status":           "rejected",
			"rejection_reason": plan.RejectionReason,
		}); terr != nil {
			logging.Warn("ticket update failed after rejection", "ticket_id", plan.TicketID, "error", terr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "rejected",
		"plan_id": plan.PlanID,
		"message": "Plan rejected",
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}

	inProgress := []*model.Run{}
	recent := []*model.Run{}
	for _, run := range runs {
		if run.Status == model.RunStatusCompleted {
			recent = append(recent, run)
		} else {
			inProgress = append(inProgress, run)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].StartedAt.After(recent[j].StartedAt)
	})

	writeJSON(w, http.StatusOK, map[string][]*model.Run{
		"in_progress": inProgress,
		"recent":      recent,
	})
}

func (s *Server) handleRunDetails(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), r.PathValue("run_id"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days parameter")
			return
		}
		days = parsed
	}

	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.kpis.Summarize(runs, days))
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if s.inventory == nil {
		writeError(w, http.StatusServiceUnavailable, "inventory unavailable")
		return
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "client-a"
	}
	devices, err := s.inventory.GetDevices(r.Context(), clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// batchCallbackRequest is the payload the state machine posts back for the
// per-wave steps.
type batchCallbackRequest struct {
	RunID                  string   `json:"run_id"`
	BatchID                string   `json:"batch_id"`
	DeviceIDs              []string `json:"device_ids"`
	HealthThresholdPercent float64  `json:"health_threshold_percent"`
}

func (s *Server) decodeBatchCallback(w http.ResponseWriter, r *http.Request) (*batchCallbackRequest, *model.Run, bool) {
	var body batchCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return nil, nil, false
	}
	if body.RunID == "" || body.BatchID == "" {
		writeError(w, http.StatusBadRequest, "missing run_id or batch_id")
		return nil, nil, false
	}
	if s.batches == nil {
		writeError(w, http.StatusServiceUnavailable, "batch executor unavailable")
		return nil, nil, false
	}
	run, err := s.store.GetRun(r.Context(), body.RunID)
	if err != nil {
		storeError(w, err)
		return nil, nil, false
	}
	return &body, run, true
}

func (s *Server) handleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	body, run, ok := s.decodeBatchCallback(w, r)
	if !ok {
		return
	}

	result := s.batches.ExecuteBatch(r.Context(), body.BatchID, body.DeviceIDs)

	run.CurrentBatch = body.BatchID
	setPhase(run, body.BatchID, func(p *model.PhaseProgress) {
		p.Status = model.PhaseStatusInProgress
	})
	if err := s.store.PutRun(r.Context(), run); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	body, run, ok := s.decodeBatchCallback(w, r)
	if !ok {
		return
	}

	threshold := body.HealthThresholdPercent
	if threshold <= 0 {
		// The plan stores a failure-rate threshold; invert it for health.
		threshold = 95
		if plan, err := s.store.GetPlan(r.Context(), run.PlanID); err == nil && plan.RollbackThresholdPercent > 0 {
			threshold = 100 - plan.RollbackThresholdPercent
		}
	}

	result := s.batches.CheckBatchHealth(r.Context(), body.BatchID, body.DeviceIDs, threshold)

	if result.Proceed {
		setPhase(run, body.BatchID, func(p *model.PhaseProgress) {
			p.Status = model.PhaseStatusCompleted
			p.Successful = result.Healthy
		})
		if err := s.store.PutRun(r.Context(), run); err != nil {
			storeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	body, run, ok := s.decodeBatchCallback(w, r)
	if !ok {
		return
	}

	result := s.batches.RollbackBatch(r.Context(), body.BatchID, body.DeviceIDs)

	setPhase(run, body.BatchID, func(p *model.PhaseProgress) {
		p.Status = model.PhaseStatusRolledBack
	})
	if err := s.store.PutRun(r.Context(), run); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompleteRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if body.RunID == "" {
		writeError(w, http.StatusBadRequest, "missing run_id")
		return
	}

	run, err := s.store.GetRun(r.Context(), body.RunID)
	if err != nil {
		storeError(w, err)
		return
	}
	if run.Status == model.RunStatusCompleted {
		writeJSON(w, http.StatusOK, run)
		return
	}

	now := time.Now().UTC()
	patched, total := 0, 0
	for _, p := range run.Progress {
		patched += p.Successful
		total += p.Devices
	}
	run.Status = model.RunStatusCompleted
	run.CurrentBatch = ""
	run.CompletedAt = &now
	run.DevicesPatched = patched
	if total > 0 {
		run.SuccessRate = float64(patched) / float64(total) * 100
	}
	run.DurationHours = now.Sub(run.StartedAt).Hours()

	if err := s.store.PutRun(r.Context(), run); err != nil {
		storeError(w, err)
		return
	}
	logging.Event("run_completed",
		"run_id", run.RunID,
		"devices_patched", run.DevicesPatched,
		"success_rate", run.SuccessRate)

	exposure := s.kpis.ExposureReduced(run)
	if err := s.metrics.PublishRunCompleted(r.Context(), run, exposure); err != nil {
		logging.Warn("metrics publish failed", "run_id", run.RunID, "error", err)
	}
	if s.tickets != nil {
		if plan, perr := s.store.GetPlan(r.Context(), run.PlanID); perr == nil {
			if _, rerr := s.tickets.GeneratePostPatchReport(r.Context(), plan, run, exposure); rerr != nil {
				logging.Warn("post-patch report failed", "run_id", run.RunID, "error", rerr)
			}
		}
	}

	writeJSON(w, http.StatusOK, run)
}

func setPhase(run *model.Run, name string, fn func(*model.PhaseProgress)) {
	for i := range run.Progress {
		if run.Progress[i].Name == name {
			fn(&run.Progress[i])
			return
		}
	}
}
