package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"grievance/handler"
	"grievance/middleware"
	"grievance/models"
	"grievance/service"
	"grievance/worker"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	complaintService *service.ComplaintService,
	adminService *service.AdminService,
	escalationWorker *worker.EscalationWorker,
	admins middleware.AdminLookup,
	db handler.Pinger,
	jwtSecret string,
) *mux.Router {
	router := mux.NewRouter()

	// Initialize handlers
	complaintHandler := handler.NewComplaintHandler(complaintService)
	adminHandler := handler.NewAdminHandler(adminService, complaintService)
	escalationHandler := handler.NewEscalationHandler(escalationWorker)
	healthHandler := handler.NewHealthHandler(db, escalationWorker)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtSecret)
	adminAuth := middleware.NewAdminAuthMiddleware(admins, jwtSecret)

	// API v1 routes
	apiV1 := router.PathPrefix("/api/v1").Subrouter()

	// Complaint routes (citizen JWT)
	complaints := apiV1.PathPrefix("/complaints").Subrouter()
	complaints.Use(authMiddleware.RequireAuth)

	// POST /api/v1/complaints - Submit a complaint; duplicate candidates block it unless confirmed
	complaints.HandleFunc("", complaintHandler.SubmitComplaint).Methods("POST")
	// POST /api/v1/complaints/duplicate-check - Warn before submitting
	complaints.HandleFunc("/duplicate-check", complaintHandler.CheckDuplicate).Methods("POST")
	// GET /api/v1/complaints/{id} - Reporter's view of a complaint
	complaints.HandleFunc("/{id}", complaintHandler.GetComplaint).Methods("GET")
	// GET /api/v1/complaints/{id}/timeline - Status history
	complaints.HandleFunc("/{id}/timeline", complaintHandler.GetStatusTimeline).Methods("GET")
	// GET /api/v1/complaints/{id}/sla - Target, overdue flag, hours remaining
	complaints.HandleFunc("/{id}/sla", complaintHandler.GetSLAStatus).Methods("GET")

	// POST /api/v1/admin/login - Email + password, returns an admin JWT
	apiV1.HandleFunc("/admin/login", adminHandler.Login).Methods("POST")

	// Admin routes (admin JWT; role read from the admins table)
	admin := apiV1.PathPrefix("/admin").Subrouter()
	admin.Use(adminAuth.RequireAdminAuth)

	admin.HandleFunc("/complaints/{id}", adminHandler.GetComplaint).Methods("GET")
	admin.HandleFunc("/complaints/{id}/status", adminHandler.UpdateComplaintStatus).Methods("POST")
	admin.Handle("/complaints/{id}/assign",
		middleware.RequireRole(models.AssignmentRoles...)(http.HandlerFunc(adminHandler.AssignComplaint))).Methods("POST")

	// Escalation routes; the worker also runs on its own ticker
	admin.Handle("/escalations/process",
		middleware.RequireRole(models.RoleSuperAdmin)(http.HandlerFunc(escalationHandler.ProcessEscalations))).Methods("POST")
	admin.HandleFunc("/escalations/digest.png", escalationHandler.Digest).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	return router
}
