package handler

import (
	"context"
	"net/http"
	"time"

	"grievance/worker"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports database reachability and worker state
type HealthHandler struct {
	db     Pinger
	worker *worker.EscalationWorker
}

// NewHealthHandler creates a new health handler; either argument may be nil
func NewHealthHandler(db Pinger, worker *worker.EscalationWorker) *HealthHandler {
	return &HealthHandler{db: db, worker: worker}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":   "ok",
		"database": "ok",
	}
	status := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			response["status"] = "degraded"
			response["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.worker != nil {
		st := h.worker.Status()
		// the full report is served by the digest endpoint
		st.LastReport = nil
		response["escalation_worker"] = st
		if last := h.worker.LastReport(); last != nil {
			response["last_scan"] = map[string]interface{}{
				"started_at": last.StartedAt,
				"scanned":    last.Scanned,
				"escalated":  last.Escalated,
				"failures":   last.Failures,
				"dry_run":    last.DryRun,
			}
		}
	}
	respondWithJSON(w, status, response)
}
