package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"grievance/models"
	"grievance/repository"
)

// t0 is 2024-03-10 09:00 UTC, a Sunday morning
var t0 = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type notifyCall struct {
	kind        models.NotificationKind
	complaintID string
	status      models.ComplaintStatus
	metadata    map[string]string
}

// recordingNotifier captures every Notify call
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(ctx context.Context, kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) models.DispatchResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{kind: kind, complaintID: complaint.ID, status: complaint.Status, metadata: metadata})
	return models.DispatchResult{Delivered: true}
}

func (n *recordingNotifier) Calls() []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifyCall(nil), n.calls...)
}

func (n *recordingNotifier) Kinds() []models.NotificationKind {
	kinds := make([]models.NotificationKind, 0)
	for _, c := range n.Calls() {
		kinds = append(kinds, c.kind)
	}
	return kinds
}

// conflictStore fails the first conflicts saves with a version conflict
type conflictStore struct {
	*repository.MemoryStore
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (s *conflictStore) Save(ctx context.Context, complaint *models.Complaint, expectedVersion int64) error {
	s.mu.Lock()
	s.saves++
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return models.NewVersionConflictError(complaint.ID, expectedVersion)
	}
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, complaint, expectedVersion)
}

// failingIndex always errors
type failingIndex struct{}

func (failingIndex) FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	return nil, errors.New("connection refused")
}

// blockingIndex ignores ctx and never answers until release is closed
type blockingIndex struct {
	release chan struct{}
}

func (b blockingIndex) FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	<-b.release
	return nil, nil
}

// staticIndex returns a fixed candidate list
type staticIndex struct {
	candidates []models.DuplicateCandidate
}

func (s staticIndex) FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error) {
	return append([]models.DuplicateCandidate(nil), s.candidates...), nil
}

// failingAudit rejects every entry
type failingAudit struct{}

func (failingAudit) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return errors.New("audit table locked")
}

// openComplaint builds a pending complaint whose SLA target follows policy
func openComplaint(id string, category models.Category, createdAt time.Time, policy *SLAPolicy) *models.Complaint {
	target := policy.ComputeTarget(category, createdAt)
	return &models.Complaint{
		ID:          id,
		Title:       "Broken road",
		Description: "Large pothole near the bus stop",
		Category:    category,
		Location:    models.Location{Latitude: 28.6139, Longitude: 77.2090, Address: "Janpath, New Delhi"},
		Reporter:    models.Reporter{UserID: "citizen-1", Email: "citizen@example.com"},
		Status:      models.StatusPending,
		StatusHistory: []models.StatusHistoryEntry{{
			Status:    models.StatusPending,
			ChangedAt: createdAt,
			ChangedBy: "citizen-1",
		}},
		SLA: models.SLAInfo{
			TargetResolutionDate: &target,
			EscalationHistory:    []models.EscalationEntry{},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		Version:   1,
	}
}

func seedAdmins(store *repository.MemoryStore) {
	store.AddAdmin(models.Admin{ID: "adm-field-1", Name: "Field One", Email: "field1@example.com", Role: models.RoleFieldOfficer, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-field-2", Name: "Field Two", Email: "field2@example.com", Role: models.RoleFieldOfficer, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-dept-1", Name: "Dept One", Email: "dept1@example.com", Role: models.RoleDepartmentAdmin, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-super-1", Name: "Super One", Email: "super1@example.com", Role: models.RoleSuperAdmin, IsActive: true})
	store.AddAdmin(models.Admin{ID: "adm-old", Name: "Retired", Email: "old@example.com", Role: models.RoleSuperAdmin, IsActive: false})
}
