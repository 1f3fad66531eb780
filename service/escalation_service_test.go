package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"grievance/models"
	"grievance/repository"
)

const day = 24 * time.Hour

type escalationFixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	notifier *recordingNotifier
	svc      *EscalationService
}

func newEscalationFixture(t *testing.T, withAdmins bool, config EscalationServiceConfig) *escalationFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	if withAdmins {
		seedAdmins(store)
	}
	clock := newFakeClock(t0)
	notifier := &recordingNotifier{}
	svc := NewEscalationService(store, DefaultSLAPolicy(), store, store, notifier, clock, config)
	return &escalationFixture{store: store, clock: clock, notifier: notifier, svc: svc}
}

func (f *escalationFixture) create(t *testing.T, c *models.Complaint) {
	t.Helper()
	if err := f.store.Create(context.Background(), c); err != nil {
		t.Fatalf("Create %s: %v", c.ID, err)
	}
}

func (f *escalationFixture) scanAt(t *testing.T, at time.Time) *models.ScanReport {
	t.Helper()
	f.clock.Set(at)
	report, err := f.svc.ProcessEscalations(context.Background())
	if err != nil {
		t.Fatalf("ProcessEscalations: %v", err)
	}
	return report
}

func (f *escalationFixture) load(t *testing.T, id string) *models.Complaint {
	t.Helper()
	c, err := f.store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("Load %s: %v", id, err)
	}
	return c
}

func TestNextEscalationLevel(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		current int
		want    int
	}{
		{2 * day, 0, 0},
		{3 * day, 0, 0},
		{3*day + time.Second, 0, 1},
		{7 * day, 0, 1},
		{7*day + time.Hour, 0, 2},
		{7*day + time.Hour, 1, 2},
		{7*day + time.Hour, 2, 0},
		{14*day + time.Hour, 0, 3},
		{14*day + time.Hour, 1, 3},
		{30 * day, 3, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v_from_%d", tt.elapsed, tt.current), func(t *testing.T) {
			got, reason := nextEscalationLevel(tt.elapsed, tt.current)
			if got != tt.want {
				t.Errorf("level = %d, want %d", got, tt.want)
			}
			if got > 0 && reason == "" {
				t.Error("escalation without a reason")
			}
		})
	}
}

func TestEscalationService_Progression(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	// water supply has a 24h target, well inside the first 3-day threshold
	c := openComplaint("GRV2403100001", models.CategoryWaterSupply, t0, DefaultSLAPolicy())
	f.create(t, c)

	report := f.scanAt(t, t0.Add(12*time.Hour))
	if report.Scanned != 1 || report.Escalated != 0 || report.NewlyOverdue != 0 {
		t.Fatalf("12h report = %+v", report)
	}

	report = f.scanAt(t, t0.Add(25*time.Hour))
	if report.NewlyOverdue != 1 || report.Escalated != 0 {
		t.Fatalf("overdue report = %+v", report)
	}
	if got := f.load(t, c.ID); !got.SLA.IsOverdue || got.SLA.EscalationLevel != 0 {
		t.Fatalf("after overdue scan: %+v", got.SLA)
	}

	steps := []struct {
		at         time.Duration
		wantLevel  int
		wantTarget string
	}{
		{3*day + time.Hour, 1, "adm-dept-1"},
		{7*day + time.Hour, 2, "adm-super-1"},
		{14*day + time.Hour, 3, "adm-super-1"},
	}
	for _, step := range steps {
		report = f.scanAt(t, t0.Add(step.at))
		if report.Escalated != 1 || report.EscalatedByLevel[step.wantLevel] != 1 {
			t.Fatalf("level %d report = %+v", step.wantLevel, report)
		}
		got := f.load(t, c.ID)
		if got.SLA.EscalationLevel != step.wantLevel {
			t.Errorf("level = %d, want %d", got.SLA.EscalationLevel, step.wantLevel)
		}
		if got.AssignedTo == nil || *got.AssignedTo != step.wantTarget {
			t.Errorf("level %d assignedTo = %v, want %s", step.wantLevel, got.AssignedTo, step.wantTarget)
		}
		if n := len(got.SLA.EscalationHistory); n != step.wantLevel {
			t.Errorf("history length = %d, want %d", n, step.wantLevel)
		}
	}

	// level 3 is the ceiling
	report = f.scanAt(t, t0.Add(30*day))
	if report.Escalated != 0 {
		t.Errorf("escalated beyond level 3: %+v", report)
	}
	if got := f.load(t, c.ID); got.Status != models.StatusPending {
		t.Errorf("escalation changed status to %s", got.Status)
	}
}

func TestEscalationService_JumpsToHighestLevel(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	c := openComplaint("GRV2403100001", models.CategoryGarbage, t0, DefaultSLAPolicy())
	f.create(t, c)

	report := f.scanAt(t, t0.Add(15*day))
	if report.EscalatedByLevel[3] != 1 {
		t.Fatalf("report = %+v, want one level-3 escalation", report)
	}
	got := f.load(t, c.ID)
	if len(got.SLA.EscalationHistory) != 1 || got.SLA.EscalationHistory[0].Level != 3 {
		t.Errorf("history = %+v, want a single level-3 entry", got.SLA.EscalationHistory)
	}
	if !got.SLA.IsOverdue {
		t.Error("complaint not flagged overdue")
	}
}

func TestEscalationService_Idempotent(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	f.create(t, openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy()))

	at := t0.Add(4 * day)
	f.scanAt(t, at)
	before := f.load(t, "GRV2403100001")
	notified := len(f.notifier.Calls())

	report := f.scanAt(t, at)
	after := f.load(t, "GRV2403100001")

	if report.Escalated != 0 || report.NewlyOverdue != 0 {
		t.Errorf("second scan changed state: %+v", report)
	}
	if after.Version != before.Version {
		t.Errorf("second scan wrote: version %d -> %d", before.Version, after.Version)
	}
	if len(f.notifier.Calls()) != notified {
		t.Errorf("second scan sent notifications")
	}
}

func TestEscalationService_Notifications(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	f.create(t, openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy()))

	f.scanAt(t, t0.Add(4*day))

	calls := f.notifier.Calls()
	if len(calls) != 2 {
		t.Fatalf("notifications = %+v, want assigned + escalated", calls)
	}
	if calls[0].kind != models.KindAssigned || calls[0].metadata[models.MetaRecipientEmail] != "dept1@example.com" {
		t.Errorf("first notification = %+v", calls[0])
	}
	if calls[1].kind != models.KindEscalated || calls[1].metadata[models.MetaLevel] != "1" {
		t.Errorf("second notification = %+v", calls[1])
	}
	if got := calls[1].metadata[models.MetaEscalatedTo]; got != "adm-dept-1" {
		t.Errorf("escalated_to = %q, want adm-dept-1", got)
	}
	if got := calls[1].metadata[models.MetaRecipientName]; got != "Dept One" {
		t.Errorf("recipient name = %q, want Dept One", got)
	}

	var escalations int
	for _, l := range f.store.AuditLogs() {
		if l.Action == "escalation" {
			escalations++
		}
	}
	if escalations != 1 {
		t.Errorf("escalation audit entries = %d, want 1", escalations)
	}
}

func TestEscalationService_NoEligibleAdmin(t *testing.T) {
	f := newEscalationFixture(t, false, EscalationServiceConfig{})
	c := openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy())
	c.AssignedTo = models.StringPtr("adm-previous")
	f.create(t, c)

	report := f.scanAt(t, t0.Add(8*day))
	if report.EscalatedByLevel[2] != 1 {
		t.Fatalf("report = %+v, want level-2 escalation", report)
	}

	got := f.load(t, "GRV2403100001")
	if got.AssignedTo == nil || *got.AssignedTo != "adm-previous" {
		t.Errorf("assignedTo = %v, want the previous assignee kept", got.AssignedTo)
	}
	if e := got.SLA.EscalationHistory[0]; e.EscalatedTo != nil {
		t.Errorf("escalatedTo = %v, want nil", *e.EscalatedTo)
	}

	calls := f.notifier.Calls()
	if len(calls) != 1 || calls[0].kind != models.KindEscalated {
		t.Fatalf("notifications = %+v, want only escalated", calls)
	}
	if to, ok := calls[0].metadata[models.MetaEscalatedTo]; ok {
		t.Errorf("escalated_to = %q, want absent when nobody qualified", to)
	}
	if name := calls[0].metadata[models.MetaRecipientName]; name != "" {
		t.Errorf("recipient name = %q, want empty", name)
	}
}

func TestEscalationService_SelectTarget(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		current string
		want    string
	}{
		{"level 1 unassigned", 1, "", "adm-dept-1"},
		{"level 1 avoids current", 1, "adm-dept-1", "adm-field-1"},
		{"level 2 prefers department admin", 2, "adm-field-1", "adm-dept-1"},
		{"level 2 moves past current", 2, "adm-dept-1", "adm-super-1"},
		{"level 3 super admin", 3, "adm-dept-1", "adm-super-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEscalationFixture(t, true, EscalationServiceConfig{})
			got, err := f.svc.selectTarget(context.Background(), tt.level, models.StringPtr(tt.current))
			if err != nil {
				t.Fatalf("selectTarget: %v", err)
			}
			if got == nil || got.ID != tt.want {
				t.Errorf("target = %+v, want %s", got, tt.want)
			}
		})
	}
}

func TestEscalationService_Level2FallsBackToCurrentAssignee(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddAdmin(models.Admin{ID: "adm-dept-1", Email: "dept1@example.com", Role: models.RoleDepartmentAdmin, IsActive: true})
	svc := NewEscalationService(store, nil, store, nil, nil, newFakeClock(t0), EscalationServiceConfig{})

	got, err := svc.selectTarget(context.Background(), 2, models.StringPtr("adm-dept-1"))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "adm-dept-1" {
		t.Errorf("target = %+v, want adm-dept-1", got)
	}
}

func TestEscalationService_InitialisesLegacyTarget(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	c := openComplaint("GRV2403100001", models.CategoryWaterSupply, t0, DefaultSLAPolicy())
	c.SLA.TargetResolutionDate = nil
	f.create(t, c)

	report := f.scanAt(t, t0.Add(time.Hour))
	if report.TargetsInitialised != 1 {
		t.Fatalf("report = %+v, want one initialised target", report)
	}
	got := f.load(t, c.ID)
	if got.SLA.TargetResolutionDate == nil || !got.SLA.TargetResolutionDate.Equal(t0.Add(24*time.Hour)) {
		t.Errorf("target = %v, want created + 24h", got.SLA.TargetResolutionDate)
	}
}

func TestEscalationService_Warning(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	f.create(t, openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy()))

	report := f.scanAt(t, t0.Add(65*time.Hour))
	if report.Warnings != 1 {
		t.Fatalf("report = %+v, want one warning", report)
	}
	if got := f.load(t, "GRV2403100001"); got.Version != 1 {
		t.Errorf("warning wrote the complaint: version %d", got.Version)
	}
}

func TestEscalationService_SkipsClosedComplaints(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	c := openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy())
	c.Status = models.StatusResolved
	f.create(t, c)

	report := f.scanAt(t, t0.Add(20*day))
	if report.Scanned != 0 {
		t.Errorf("scanned = %d, want 0", report.Scanned)
	}
}

func TestEscalationService_DryRun(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{DryRun: true})
	c := openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy())
	c.AssignedTo = models.StringPtr("adm-previous")
	f.create(t, c)

	report := f.scanAt(t, t0.Add(8*day))
	if !report.DryRun || report.EscalatedByLevel[2] != 1 {
		t.Fatalf("report = %+v, want a dry-run level-2 escalation", report)
	}
	got := f.load(t, "GRV2403100001")
	if got.Version != 1 || got.SLA.EscalationLevel != 0 {
		t.Errorf("dry run wrote the complaint: %+v", got.SLA)
	}
	if len(f.notifier.Calls()) != 0 {
		t.Errorf("dry run sent notifications")
	}
}

func TestEscalationService_VersionConflict(t *testing.T) {
	tests := []struct {
		name        string
		conflicts   int
		wantOutcome models.EscalationOutcome
	}{
		{"retried once", 1, models.OutcomeEscalated},
		{"gives up after retry", 2, models.OutcomeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := repository.NewMemoryStore()
			seedAdmins(mem)
			store := &conflictStore{MemoryStore: mem, conflicts: tt.conflicts}
			clock := newFakeClock(t0.Add(4 * day))
			notifier := &recordingNotifier{}
			svc := NewEscalationService(store, nil, mem, nil, notifier, clock, EscalationServiceConfig{})
			if err := mem.Create(context.Background(), openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy())); err != nil {
				t.Fatal(err)
			}

			report, err := svc.ProcessEscalations(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(report.Results) != 1 || report.Results[0].Outcome != tt.wantOutcome {
				t.Fatalf("results = %+v, want %s", report.Results, tt.wantOutcome)
			}
			if tt.wantOutcome == models.OutcomeConflict && len(notifier.Calls()) != 0 {
				t.Errorf("conflicting scan sent notifications")
			}
		})
	}
}

func TestEscalationService_ConcurrentScansEscalateOnce(t *testing.T) {
	store := repository.NewMemoryStore()
	seedAdmins(store)
	clock := newFakeClock(t0.Add(4 * day))
	notifier := &recordingNotifier{}
	svc := NewEscalationService(store, nil, store, nil, notifier, clock, EscalationServiceConfig{Workers: 4})
	for i := 1; i <= 20; i++ {
		c := openComplaint(fmt.Sprintf("GRV240310%04d", i), models.CategoryRoadDamage, t0, DefaultSLAPolicy())
		if err := store.Create(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ProcessEscalations(context.Background()); err != nil {
				t.Errorf("ProcessEscalations: %v", err)
			}
		}()
	}
	wg.Wait()

	for i := 1; i <= 20; i++ {
		id := fmt.Sprintf("GRV240310%04d", i)
		c, err := store.Load(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.SLA.EscalationHistory) != 1 || c.SLA.EscalationLevel != 1 {
			t.Errorf("%s escalation history = %+v", id, c.SLA.EscalationHistory)
		}
	}

	var escalated int
	for _, kind := range notifier.Kinds() {
		if kind == models.KindEscalated {
			escalated++
		}
	}
	if escalated != 20 {
		t.Errorf("escalated notifications = %d, want 20", escalated)
	}
}

func TestEscalationService_CancelledScan(t *testing.T) {
	f := newEscalationFixture(t, true, EscalationServiceConfig{})
	f.create(t, openComplaint("GRV2403100001", models.CategoryRoadDamage, t0, DefaultSLAPolicy()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.clock.Set(t0.Add(4 * day))
	report, err := f.svc.ProcessEscalations(ctx)
	if err != nil {
		t.Fatalf("ProcessEscalations: %v", err)
	}
	if !report.Cancelled || report.Escalated != 0 {
		t.Errorf("report = %+v, want cancelled without escalations", report)
	}
}
