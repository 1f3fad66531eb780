package handler

import (
	"log"
	"net/http"
	"strconv"

	"grievance/summary"
	"grievance/worker"
)

// EscalationHandler handles HTTP requests for escalation operations
type EscalationHandler struct {
	worker *worker.EscalationWorker
}

// NewEscalationHandler creates a new escalation handler
func NewEscalationHandler(worker *worker.EscalationWorker) *EscalationHandler {
	return &EscalationHandler{worker: worker}
}

// ProcessEscalations handles POST /api/v1/admin/escalations/process
// Runs one scan now; scans are idempotent so this is safe alongside the ticker
func (h *EscalationHandler) ProcessEscalations(w http.ResponseWriter, r *http.Request) {
	report, err := h.worker.RunOnce(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// Digest handles GET /api/v1/admin/escalations/digest.png
func (h *EscalationHandler) Digest(w http.ResponseWriter, r *http.Request) {
	report := h.worker.LastReport()
	if report == nil {
		respondWithError(w, http.StatusNotFound, "Not found", "No escalation scan has run yet")
		return
	}

	png, err := summary.RenderDigest(report)
	if err != nil {
		log.Printf("[ESCALATION] failed to render digest: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Failed to render digest")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
