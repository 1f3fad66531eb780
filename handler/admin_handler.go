package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"grievance/middleware"
	"grievance/models"
	"grievance/service"
)

// AdminHandler handles admin login and complaint administration
type AdminHandler struct {
	admins     *service.AdminService
	complaints *service.ComplaintService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admins *service.AdminService, complaints *service.ComplaintService) *AdminHandler {
	return &AdminHandler{admins: admins, complaints: complaints}
}

// Login handles POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	response, err := h.admins.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			respondWithServiceError(w, err)
			return
		}
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
		return
	}
	respondWithJSON(w, http.StatusOK, response)
}

// UpdateComplaintStatus handles POST /api/v1/admin/complaints/{id}/status
func (h *AdminHandler) UpdateComplaintStatus(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Admin not found in context")
		return
	}

	var req models.UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	complaint, err := h.complaints.UpdateStatus(r.Context(), mux.Vars(r)["id"], &req, admin.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, complaint)
}

// AssignComplaint handles POST /api/v1/admin/complaints/{id}/assign
func (h *AdminHandler) AssignComplaint(w http.ResponseWriter, r *http.Request) {
	admin, ok := middleware.AdminFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Admin not found in context")
		return
	}

	var req models.AssignComplaintRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	complaint, err := h.complaints.AssignComplaint(r.Context(), mux.Vars(r)["id"], &req, admin.ID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, complaint)
}

// GetComplaint handles GET /api/v1/admin/complaints/{id} (full record, any reporter)
func (h *AdminHandler) GetComplaint(w http.ResponseWriter, r *http.Request) {
	complaint, err := h.complaints.GetComplaint(r.Context(), mux.Vars(r)["id"], "")
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, complaint)
}
