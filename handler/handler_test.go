package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grievance/models"
	"grievance/repository"
	"grievance/routes"
	"grievance/service"
	"grievance/utils"
	"grievance/worker"
)

const testSecret = "handler-test-secret"

type fakePinger struct{ err error }

func (p fakePinger) PingContext(ctx context.Context) error { return p.err }

// fakeCredentials accepts a single email/password pair
type fakeCredentials struct {
	admin    models.Admin
	password string
}

func (f *fakeCredentials) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return nil
}

func (f *fakeCredentials) ValidateCredentials(ctx context.Context, email, password string) (*models.Admin, error) {
	if email != f.admin.Email || password != f.password {
		return nil, errors.New("invalid credentials")
	}
	a := f.admin
	return &a, nil
}

type server struct {
	store  *repository.MemoryStore
	router http.Handler
	svc    *service.ComplaintService
}

func newServer(t *testing.T, db fakePinger) *server {
	t.Helper()
	store := repository.NewMemoryStore()
	store.AddAdmin(models.Admin{ID: "adm-field", Name: "Field", Email: "field@example.com", Role: models.RoleFieldOfficer, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-dept", Name: "Dept", Email: "dept@example.com", Role: models.RoleDepartmentAdmin, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-super", Name: "Super", Email: "super@example.com", Role: models.RoleSuperAdmin, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-gone", Name: "Gone", Email: "gone@example.com", Role: models.RoleSuperAdmin, IsActive: false})

	policy := service.DefaultSLAPolicy()
	detector := service.NewDuplicateDetector(store, store, nil, service.DuplicateDetectorConfig{})
	ids := service.NewIDGenerator("GRV", time.UTC, store)
	complaints := service.NewComplaintService(store, detector, policy, ids, store, store, nil, nil)
	escalations := service.NewEscalationService(store, policy, store, store, nil, nil, service.EscalationServiceConfig{})
	admins := service.NewAdminService(&fakeCredentials{
		admin:    models.Admin{ID: "adm-dept", Email: "dept@example.com", Role: models.RoleDepartmentAdmin, IsActive: true},
		password: "correct-horse",
	}, testSecret, 1)
	w := worker.NewEscalationWorker(escalations, time.Hour, 0)

	router := routes.SetupRoutes(complaints, admins, w, store, db, testSecret)
	t.Cleanup(complaints.WaitForNotifications)
	return &server{store: store, router: router, svc: complaints}
}

func citizenToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := utils.GenerateJWT(userID, []byte(testSecret), 1)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return token
}

func adminToken(t *testing.T, adminID string) string {
	t.Helper()
	// the role claim is ignored; the middleware reads it from the store
	token, err := utils.GenerateAdminJWT(adminID, string(models.RoleSuperAdmin), []byte(testSecret), 1)
	if err != nil {
		t.Fatalf("GenerateAdminJWT: %v", err)
	}
	return token
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func submitBody() models.SubmitComplaintRequest {
	return models.SubmitComplaintRequest{
		Title:       "Overflowing drain",
		Description: "Drain overflowing onto the footpath",
		Category:    models.CategoryGarbage,
		Location:    models.Location{Latitude: 28.6139, Longitude: 77.2090, Address: "Connaught Place"},
		Reporter:    models.Reporter{Email: "someone@example.com"},
	}
}

func (s *server) submit(t *testing.T, userID string) *models.Complaint {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/complaints", citizenToken(t, userID), submitBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.SubmitComplaintResponse
	decode(t, rec, &resp)
	return resp.Complaint
}

func TestSubmitComplaint(t *testing.T) {
	s := newServer(t, fakePinger{})

	c := s.submit(t, "citizen-1")
	if c.Reporter.UserID != "citizen-1" {
		t.Errorf("reporter = %q, want the token holder", c.Reporter.UserID)
	}
	if c.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", c.Status)
	}

	// same spot and category: blocked with candidates
	rec := s.do(t, http.MethodPost, "/api/v1/complaints", citizenToken(t, "citizen-2"), submitBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate submit status = %d, want 200", rec.Code)
	}
	var resp models.SubmitComplaintResponse
	decode(t, rec, &resp)
	if resp.Created || !resp.Duplicate.IsDuplicate || len(resp.Duplicate.Candidates) != 1 {
		t.Fatalf("duplicate response = %+v", resp)
	}
	if resp.Duplicate.Candidates[0].ID != c.ID {
		t.Errorf("candidate = %s, want %s", resp.Duplicate.Candidates[0].ID, c.ID)
	}

	body := submitBody()
	body.ConfirmNotDuplicate = true
	rec = s.do(t, http.MethodPost, "/api/v1/complaints", citizenToken(t, "citizen-2"), body)
	if rec.Code != http.StatusCreated {
		t.Errorf("confirmed submit status = %d, want 201", rec.Code)
	}
}

func TestSubmitComplaint_BadRequests(t *testing.T) {
	s := newServer(t, fakePinger{})
	token := citizenToken(t, "citizen-1")

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"unknown field", map[string]interface{}{"title": "x", "priority": "high"}, http.StatusBadRequest},
		{"invalid category", map[string]interface{}{
			"title":    "x",
			"category": "potholes",
			"location": map[string]interface{}{"latitude": 28.6, "longitude": 77.2},
		}, http.StatusBadRequest},
		{"latitude out of range", map[string]interface{}{
			"title":    "x",
			"category": "garbage",
			"location": map[string]interface{}{"latitude": 128.6, "longitude": 77.2},
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/complaints", token, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCitizenAuth(t *testing.T) {
	s := newServer(t, fakePinger{})

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
		{"admin token", adminToken(t, "adm-super")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/complaints", tt.token, submitBody())
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestGetComplaint_Ownership(t *testing.T) {
	s := newServer(t, fakePinger{})
	c := s.submit(t, "citizen-1")

	tests := []struct {
		name string
		path string
		user string
		want int
	}{
		{"reporter", "/api/v1/complaints/" + c.ID, "citizen-1", http.StatusOK},
		{"reporter timeline", "/api/v1/complaints/" + c.ID + "/timeline", "citizen-1", http.StatusOK},
		{"reporter sla", "/api/v1/complaints/" + c.ID + "/sla", "citizen-1", http.StatusOK},
		{"other citizen", "/api/v1/complaints/" + c.ID, "citizen-2", http.StatusNotFound},
		{"unknown id", "/api/v1/complaints/GRV0000000000", "citizen-1", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, tt.path, citizenToken(t, tt.user), nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCheckDuplicate(t *testing.T) {
	s := newServer(t, fakePinger{})
	c := s.submit(t, "citizen-1")

	rec := s.do(t, http.MethodPost, "/api/v1/complaints/duplicate-check", citizenToken(t, "citizen-2"), models.DuplicateCheckRequest{
		Latitude:  28.6140,
		Longitude: 77.2090,
		Category:  models.CategoryGarbage,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result models.DuplicateResult
	decode(t, rec, &result)
	if !result.IsDuplicate || result.Candidates[0].ID != c.ID {
		t.Errorf("result = %+v", result)
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	s := newServer(t, fakePinger{})
	c := s.submit(t, "citizen-1")
	path := "/api/v1/admin/complaints/" + c.ID + "/status"
	token := adminToken(t, "adm-field")

	rec := s.do(t, http.MethodPost, path, token, models.UpdateStatusRequest{Status: models.StatusInProgress, Remarks: "crew dispatched"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var updated models.Complaint
	decode(t, rec, &updated)
	if updated.Status != models.StatusInProgress || len(updated.StatusHistory) != 2 {
		t.Errorf("updated = %s with %d history entries", updated.Status, len(updated.StatusHistory))
	}
	if updated.StatusHistory[1].ChangedBy != "adm-field" {
		t.Errorf("changed_by = %q, want adm-field", updated.StatusHistory[1].ChangedBy)
	}

	tests := []struct {
		name string
		req  models.UpdateStatusRequest
		want int
	}{
		{"back to pending", models.UpdateStatusRequest{Status: models.StatusPending}, http.StatusConflict},
		{"duplicate without reference", models.UpdateStatusRequest{Status: models.StatusDuplicate}, http.StatusConflict},
		{"unknown status", models.UpdateStatusRequest{Status: "closed"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, path, token, tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	s := newServer(t, fakePinger{})
	c := s.submit(t, "citizen-1")
	path := "/api/v1/admin/complaints/" + c.ID

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"active admin", adminToken(t, "adm-field"), http.StatusOK},
		{"inactive admin", adminToken(t, "adm-gone"), http.StatusUnauthorized},
		{"unknown admin", adminToken(t, "adm-nobody"), http.StatusUnauthorized},
		{"citizen token", citizenToken(t, "citizen-1"), http.StatusForbidden},
		{"no token", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodGet, path, tt.token, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAdminAssign_RequiresRole(t *testing.T) {
	s := newServer(t, fakePinger{})
	c := s.submit(t, "citizen-1")
	path := "/api/v1/admin/complaints/" + c.ID + "/assign"
	req := models.AssignComplaintRequest{AdminID: "adm-field", Remarks: "ward 4"}

	rec := s.do(t, http.MethodPost, path, adminToken(t, "adm-field"), req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("field officer assign status = %d, want 403", rec.Code)
	}

	rec = s.do(t, http.MethodPost, path, adminToken(t, "adm-dept"), req)
	if rec.Code != http.StatusOK {
		t.Fatalf("department admin assign status = %d, body %s", rec.Code, rec.Body.String())
	}
	var assigned models.Complaint
	decode(t, rec, &assigned)
	if assigned.AssignedTo == nil || *assigned.AssignedTo != "adm-field" {
		t.Errorf("assigned_to = %v, want adm-field", assigned.AssignedTo)
	}

	rec = s.do(t, http.MethodPost, path, adminToken(t, "adm-dept"), models.AssignComplaintRequest{AdminID: "adm-gone"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("assign to inactive admin status = %d, want 400", rec.Code)
	}
}

func TestAdminLogin(t *testing.T) {
	s := newServer(t, fakePinger{})

	rec := s.do(t, http.MethodPost, "/api/v1/admin/login", "", models.AdminLoginRequest{Email: "dept@example.com", Password: "correct-horse"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.AdminLoginResponse
	decode(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}

	// the issued token works on the admin routes
	c := s.submit(t, "citizen-1")
	if rec := s.do(t, http.MethodGet, "/api/v1/admin/complaints/"+c.ID, resp.Token, nil); rec.Code != http.StatusOK {
		t.Errorf("admin read with issued token = %d, want 200", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/admin/login", "", models.AdminLoginRequest{Email: "dept@example.com", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", rec.Code)
	}
}

func TestEscalationEndpoints(t *testing.T) {
	s := newServer(t, fakePinger{})
	s.submit(t, "citizen-1")

	rec := s.do(t, http.MethodGet, "/api/v1/admin/escalations/digest.png", adminToken(t, "adm-super"), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("digest before any scan = %d, want 404", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/admin/escalations/process", adminToken(t, "adm-dept"), nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("department admin scan = %d, want 403", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/admin/escalations/process", adminToken(t, "adm-super"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d, body %s", rec.Code, rec.Body.String())
	}
	var report models.ScanReport
	decode(t, rec, &report)
	if report.Scanned != 1 || report.Escalated != 0 {
		t.Errorf("report scanned=%d escalated=%d, want 1 and 0", report.Scanned, report.Escalated)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/admin/escalations/digest.png", adminToken(t, "adm-super"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("digest status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("digest body is not a PNG")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		db         fakePinger
		wantCode   int
		wantStatus string
	}{
		{"database up", fakePinger{}, http.StatusOK, "ok"},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, tt.db)
			rec := s.do(t, http.MethodGet, "/health", "", nil)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var body map[string]interface{}
			decode(t, rec, &body)
			if body["status"] != tt.wantStatus {
				t.Errorf("body status = %v, want %s", body["status"], tt.wantStatus)
			}
			if _, ok := body["escalation_worker"]; !ok {
				t.Error("health body has no escalation_worker section")
			}
		})
	}
}
