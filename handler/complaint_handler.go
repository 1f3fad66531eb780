package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"grievance/middleware"
	"grievance/models"
	"grievance/service"
)

// ComplaintHandler handles HTTP requests for complaints
type ComplaintHandler struct {
	service *service.ComplaintService
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(svc *service.ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{service: svc}
}

// SubmitComplaint handles POST /api/v1/complaints
// Returns 201 when created, 200 with the candidates when a duplicate stopped it
func (h *ComplaintHandler) SubmitComplaint(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "User ID not found in context")
		return
	}

	var req models.SubmitComplaintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// the reporter is always the token holder
	req.Reporter.UserID = userID

	response, err := h.service.SubmitComplaint(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if !response.Created {
		status = http.StatusOK
	}
	respondWithJSON(w, status, response)
}

// CheckDuplicate handles POST /api/v1/complaints/duplicate-check
func (h *ComplaintHandler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req models.DuplicateCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CheckDuplicate(r.Context(), &req)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetComplaint handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	complaint, err := h.service.GetComplaint(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, complaint)
}

// GetStatusTimeline handles GET /api/v1/complaints/{id}/timeline
func (h *ComplaintHandler) GetStatusTimeline(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	id := mux.Vars(r)["id"]
	timeline, err := h.service.GetStatusTimeline(r.Context(), id, userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"complaint_id": id,
		"timeline":     timeline,
	})
}

// GetSLAStatus handles GET /api/v1/complaints/{id}/sla
func (h *ComplaintHandler) GetSLAStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	status, err := h.service.GetSLAStatus(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}
