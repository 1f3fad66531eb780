package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"grievance/models"
	"grievance/repository"
	"grievance/service"
)

var (
	_ service.ComplaintStore = (*repository.ComplaintRepository)(nil)
	_ service.GeoIndex       = (*repository.ComplaintRepository)(nil)
	_ service.ComplaintStore = (*repository.MemoryStore)(nil)
	_ service.GeoIndex       = (*repository.MemoryStore)(nil)
	_ service.AdminDirectory = (*repository.AdminRepository)(nil)
	_ service.AdminDirectory = (*repository.MemoryStore)(nil)
	_ service.AuditLogger    = (*repository.AuditRepository)(nil)
)

func TestComplaintRepository_CreateAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	accuracy := 8.5
	c := newComplaint("GRV2403100001", models.CategoryRoadDamage, 12.9716, 77.5946, baseTime)
	c.Location.Accuracy = &accuracy
	c.Reporter.Language = "hi"

	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.StatusHistory[0].HistoryID == "" {
		t.Error("expected history id to be assigned")
	}

	got, err := repo.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Category != models.CategoryRoadDamage {
		t.Errorf("got category %q, want %q", got.Category, models.CategoryRoadDamage)
	}
	if got.Location.Accuracy == nil || *got.Location.Accuracy != accuracy {
		t.Errorf("got accuracy %v, want %v", got.Location.Accuracy, accuracy)
	}
	if got.Reporter.Language != "hi" {
		t.Errorf("got language %q, want %q", got.Reporter.Language, "hi")
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("got created_at %v, want %v", got.CreatedAt, baseTime)
	}
	if got.SLA.TargetResolutionDate == nil || !got.SLA.TargetResolutionDate.Equal(baseTime.Add(72*time.Hour)) {
		t.Errorf("got target %v, want %v", got.SLA.TargetResolutionDate, baseTime.Add(72*time.Hour))
	}
	if len(got.StatusHistory) != 1 || got.StatusHistory[0].Status != models.StatusPending {
		t.Errorf("got history %+v, want one pending entry", got.StatusHistory)
	}
	if got.Version != 1 {
		t.Errorf("got version %d, want 1", got.Version)
	}
	if got.DuplicateOf != nil || got.AssignedTo != nil || got.ResolvedAt != nil {
		t.Errorf("expected nil optional fields, got %+v", got)
	}
}

func TestComplaintRepository_CreateDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	c := newComplaint("GRV2403100001", models.CategoryGarbage, 12.97, 77.59, baseTime)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, newComplaint("GRV2403100001", models.CategoryGarbage, 12.97, 77.59, baseTime))
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestComplaintRepository_LoadNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")

	_, err := repo.Load(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestComplaintRepository_SaveAppendsHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	c := newComplaint("GRV2403100001", models.CategoryStreetLight, 12.97, 77.59, baseTime)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := repo.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	escalatedAt := baseTime.Add(4 * 24 * time.Hour)
	loaded.Status = models.StatusInProgress
	loaded.StatusHistory = append(loaded.StatusHistory, models.StatusHistoryEntry{
		Status: models.StatusInProgress, ChangedAt: escalatedAt, ChangedBy: "admin-1", Remarks: "crew assigned",
	})
	loaded.SLA.IsOverdue = true
	loaded.SLA.EscalationLevel = 1
	loaded.SLA.EscalationHistory = append(loaded.SLA.EscalationHistory, models.EscalationEntry{
		Level: 1, EscalatedTo: models.StringPtr("admin-2"), EscalatedAt: escalatedAt, Reason: "Overdue for more than 3 days",
	})
	loaded.AssignedTo = models.StringPtr("admin-2")
	loaded.UpdatedAt = escalatedAt

	if err := repo.Save(ctx, loaded, 1); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("got version %d, want 2", loaded.Version)
	}

	got, err := repo.Load(ctx, c.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("got status %q, want %q", got.Status, models.StatusInProgress)
	}
	if len(got.StatusHistory) != 2 || got.StatusHistory[1].Remarks != "crew assigned" {
		t.Errorf("got history %+v", got.StatusHistory)
	}
	if len(got.SLA.EscalationHistory) != 1 || *got.SLA.EscalationHistory[0].EscalatedTo != "admin-2" {
		t.Errorf("got escalations %+v", got.SLA.EscalationHistory)
	}
	if !got.SLA.IsOverdue || got.SLA.EscalationLevel != 1 {
		t.Errorf("got sla %+v", got.SLA)
	}
	if got.AssignedTo == nil || *got.AssignedTo != "admin-2" {
		t.Errorf("got assigned_to %v, want admin-2", got.AssignedTo)
	}
}

func TestComplaintRepository_SaveVersionConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	c := newComplaint("GRV2403100001", models.CategorySewage, 12.97, 77.59, baseTime)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, _ := repo.Load(ctx, c.ID)
	second, _ := repo.Load(ctx, c.ID)

	first.SLA.IsOverdue = true
	if err := repo.Save(ctx, first, first.Version); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	second.Title = "stale"
	err := repo.Save(ctx, second, second.Version)
	if !errors.Is(err, models.ErrVersionConflict) {
		t.Fatalf("got %v, want version conflict", err)
	}

	got, _ := repo.Load(ctx, c.ID)
	if got.Title == "stale" {
		t.Error("stale write must not be applied")
	}
}

func TestComplaintRepository_SaveRejectsShrinkingHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	c := newComplaint("GRV2403100001", models.CategorySewage, 12.97, 77.59, baseTime)
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	loaded, _ := repo.Load(ctx, c.ID)
	loaded.StatusHistory = nil

	err := repo.Save(ctx, loaded, loaded.Version)
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestComplaintRepository_SaveNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")

	c := newComplaint("missing", models.CategorySewage, 12.97, 77.59, baseTime)
	err := repo.Save(context.Background(), c, 1)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestComplaintRepository_ListOpen(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	statuses := []models.ComplaintStatus{
		models.StatusPending, models.StatusResolved, models.StatusInProgress, models.StatusRejected, models.StatusDuplicate,
	}
	for i, status := range statuses {
		c := newComplaint(
			"GRV240310000"+string(rune('1'+i)),
			models.CategoryGarbage, 12.97, 77.59, baseTime.Add(time.Duration(i)*time.Hour),
		)
		c.Status = status
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	ids, err := repo.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	want := []string{"GRV2403100001", "GRV2403100003"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestComplaintRepository_NextSequence(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextSequence(ctx, "240310")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}

	got, err := repo.NextSequence(ctx, "240311")
	if err != nil {
		t.Fatalf("NextSequence failed: %v", err)
	}
	if got != 1 {
		t.Errorf("new day: got %d, want 1", got)
	}
}

func TestComplaintRepository_FindNearby(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewComplaintRepository(db, "sqlite3")
	ctx := context.Background()

	const lat, lng = 12.9716, 77.5946
	fixtures := []struct {
		id       string
		category models.Category
		lat, lng float64
		age      time.Duration
		status   models.ComplaintStatus
	}{
		{"NEAR", models.CategoryRoadDamage, lat + 0.0003, lng, 2 * time.Hour, models.StatusPending},      // ~33m
		{"RESOLVED", models.CategoryRoadDamage, lat, lng + 0.0005, 3 * time.Hour, models.StatusResolved}, // ~54m
		{"FAR", models.CategoryRoadDamage, lat + 0.002, lng, time.Hour, models.StatusPending},            // ~222m
		{"OTHERCAT", models.CategoryGarbage, lat, lng, time.Hour, models.StatusPending},                  // wrong category
		{"OLD", models.CategoryRoadDamage, lat, lng, 30 * time.Hour, models.StatusPending},               // outside window
		{"REJECTED", models.CategoryRoadDamage, lat, lng, time.Hour, models.StatusRejected},              // excluded
	}
	now := baseTime.Add(48 * time.Hour)
	for _, f := range fixtures {
		c := newComplaint(f.id, f.category, f.lat, f.lng, now.Add(-f.age))
		c.Status = f.status
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("Create %s failed: %v", f.id, err)
		}
	}

	got, err := repo.FindNearby(ctx, models.DuplicateQuery{
		Latitude:        lat,
		Longitude:       lng,
		Category:        models.CategoryRoadDamage,
		RadiusMeters:    100,
		Since:           now.Add(-24 * time.Hour),
		Until:           now,
		ExcludeStatuses: []models.ComplaintStatus{models.StatusRejected, models.StatusDuplicate},
	})
	if err != nil {
		t.Fatalf("FindNearby failed: %v", err)
	}

	found := make(map[string]float64)
	for _, c := range got {
		found[c.ID] = c.Distance
	}
	if len(found) != 2 {
		t.Fatalf("got %v, want NEAR and RESOLVED", found)
	}
	if d, ok := found["NEAR"]; !ok || d < 30 || d > 36 {
		t.Errorf("NEAR distance = %v, want about 33m", d)
	}
	if _, ok := found["RESOLVED"]; !ok {
		t.Error("resolved complaints should remain candidates")
	}
}
