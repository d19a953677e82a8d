// Package server exposes the webhook ingress, the dashboard REST API and
// the execution callbacks over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/patchpilot-io/patchpilot/internal/agent"
	"github.com/patchpilot-io/patchpilot/internal/inventory"
	"github.com/patchpilot-io/patchpilot/internal/kpi"
	"github.com/patchpilot-io/patchpilot/internal/logging"
	"github.com/patchpilot-io/patchpilot/internal/metrics"
	"github.com/patchpilot-io/patchpilot/internal/orchestrator"
	"github.com/patchpilot-io/patchpilot/internal/store"
	"github.com/patchpilot-io/patchpilot/internal/ticket"
)

// Server wires the domain components behind the HTTP surface.
type Server struct {
	store     store.Store
	agent     *agent.Agent
	kpis      *kpi.Aggregator
	orch      orchestrator.ExecutionOrchestrator
	batches   *orchestrator.BatchExecutor
	inventory inventory.Client
	tickets   *ticket.Manager
	metrics   *metrics.Publisher

	http *http.Server
}

// Options carries the dependencies of the server. Store, Agent, KPIs and
// Orchestrator are required; the rest degrade to no-ops when nil.
type Options struct {
	Addr         string
	Store        store.Store
	Agent        *agent.Agent
	KPIs         *kpi.Aggregator
	Orchestrator orchestrator.ExecutionOrchestrator
	Batches      *orchestrator.BatchExecutor
	Inventory    inventory.Client
	Tickets      *ticket.Manager
	Metrics      *metrics.Publisher
}

// New builds the server and its route table.
func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		agent:     opts.Agent,
		kpis:      opts.KPIs,
		orch:      opts.Orchestrator,
		batches:   opts.Batches,
		inventory: opts.Inventory,
		tickets:   opts.Tickets,
		metrics:   opts.Metrics,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /webhook/{source}", s.handleWebhook)

	mux.HandleFunc("GET /api/dashboard/plans", s.handleOpenPlans)
	mux.HandleFunc("GET /api/dashboard/plans/history", s.handlePlanHistory)
	mux.HandleFunc("POST /api/dashboard/plans/generate", s.handleGeneratePlan)
	mux.HandleFunc("POST /api/dashboard/plans/update", s.handleUpdatePlan)
	mux.HandleFunc("PUT /api/dashboard/plans/update", s.handleUpdatePlan)
	mux.HandleFunc("POST /api/dashboard/approve-plan", s.handleApprovePlan)
	mux.HandleFunc("POST /api/dashboard/reject-plan", s.handleRejectPlan)
	mux.HandleFunc("GET /api/dashboard/runs", s.handleRuns)
	mux.HandleFunc("GET /api/dashboard/runs/{run_id}", s.handleRunDetails)
	mux.HandleFunc("GET /api/dashboard/kpis", s.handleKPIs)

	mux.HandleFunc("GET /devices", s.handleDevices)

	mux.HandleFunc("POST /internal/execute-batch", s.handleExecuteBatch)
	mux.HandleFunc("POST /internal/health-check", s.handleHealthCheck)
	mux.HandleFunc("POST /internal/rollback", s.handleRollback)
	mux.HandleFunc("POST /internal/complete-run", s.handleCompleteRun)

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           withCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		logging.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logging.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// withCORS permits the dashboard's cross-origin calls.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// storeError maps persistence failures onto the API error taxonomy.
func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	logging.Error("store operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
