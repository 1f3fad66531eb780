package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"grievance/models"
)

// escalationThreshold promotes a complaint once it has been open longer than after
type escalationThreshold struct {
	after  time.Duration
	level  int
	reason string
}

// escalationThresholds is ordered highest level first; the first match wins
var escalationThresholds = []escalationThreshold{
	{after: 14 * 24 * time.Hour, level: 3, reason: "Overdue for more than 14 days"},
	{after: 7 * 24 * time.Hour, level: 2, reason: "Overdue for more than 7 days"},
	{after: 3 * 24 * time.Hour, level: 1, reason: "Overdue for more than 3 days"},
}

// EscalationServiceConfig holds scheduler tuning
type EscalationServiceConfig struct {
	Workers       int
	DryRun        bool // evaluate and report without writing or notifying
	NotifyTimeout time.Duration
}

// EscalationService scans open complaints, tracks SLA breaches and walks
// overdue complaints up the escalation tiers.
type EscalationService struct {
	store    ComplaintStore
	policy   *SLAPolicy
	admins   AdminDirectory
	audit    AuditLogger // optional
	notifier Notifier    // optional
	clock    Clock
	config   EscalationServiceConfig
}

// NewEscalationService creates a new escalation service
func NewEscalationService(
	store ComplaintStore,
	policy *SLAPolicy,
	admins AdminDirectory,
	audit AuditLogger,
	notifier Notifier,
	clock Clock,
	config EscalationServiceConfig,
) *EscalationService {
	if policy == nil {
		policy = DefaultSLAPolicy()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 10 * time.Second
	}
	return &EscalationService{
		store:    store,
		policy:   policy,
		admins:   admins,
		audit:    audit,
		notifier: notifier,
		clock:    clock,
		config:   config,
	}
}

// escalationPlan is the evaluated change for one complaint
type escalationPlan struct {
	next         *models.Complaint // nil when nothing needs persisting
	result       models.EscalationResult
	initialised  bool
	newlyOverdue bool
	target       *models.Admin
	reassigned   bool
}

// ProcessEscalations runs one scan over every pending or in-progress
// complaint. It is idempotent: running it twice at the same instant
// changes nothing the second time.
//
// Flow:
// 1. List open complaints
// 2. For each, load a fresh snapshot and evaluate SLA state
// 3. Save with the loaded version; on conflict reload and retry once
// 4. Notify only after the save has committed
func (s *EscalationService) ProcessEscalations(ctx context.Context) (*models.ScanReport, error) {
	report := models.NewScanReport(s.clock.Now(), s.config.DryRun)
	if s.config.DryRun {
		log.Printf("[DRY RUN] Escalation scan running in DRY RUN mode")
	}

	ids, err := s.store.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open complaints: %w", err)
	}
	log.Printf("[ESCALATION] scanning %d open complaints with %d workers", len(ids), s.config.Workers)

	var g errgroup.Group
	g.SetLimit(s.config.Workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		id := id
		g.Go(func() error {
			s.processComplaint(ctx, id, report)
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		report.Cancelled = true
	}

	report.FinishedAt = s.clock.Now()
	log.Printf("[ESCALATION] scan finished in %v: scanned=%d initialised=%d overdue=%d escalated=%d warnings=%d conflicts=%d failures=%d",
		report.Duration(), report.Scanned, report.TargetsInitialised, report.NewlyOverdue,
		report.Escalated, report.Warnings, report.Conflicts, report.Failures)
	return report, nil
}

// processComplaint handles one load-evaluate-save cycle
func (s *EscalationService) processComplaint(ctx context.Context, id string, report *models.ScanReport) {
	for attempt := 0; attempt < 2; attempt++ {
		if ctx.Err() != nil {
			return
		}

		current, err := s.store.Load(ctx, id)
		if err != nil {
			log.Printf("[ESCALATION] Skipping complaint %s: %v", id, err)
			report.Record(s.failed(id, err), false, false)
			return
		}
		if !current.Status.IsOpen() {
			// Closed between listing and loading.
			report.Record(models.EscalationResult{ComplaintID: id, Outcome: models.OutcomeUnchanged, ProcessedAt: s.clock.Now()}, false, false)
			return
		}

		plan, err := s.evaluate(ctx, current, s.clock.Now())
		if err != nil {
			log.Printf("[ESCALATION] Skipping complaint %s: %v", id, err)
			report.Record(s.failed(id, err), false, false)
			return
		}

		if plan.next == nil || s.config.DryRun {
			if s.config.DryRun && plan.result.Escalated {
				log.Printf("[DRY RUN] complaint %s would escalate to level %d: %s", id, plan.result.Level, plan.result.Reason)
			}
			report.Record(plan.result, plan.initialised, plan.newlyOverdue)
			return
		}

		err = s.store.Save(ctx, plan.next, current.Version)
		if err == nil {
			report.Record(plan.result, plan.initialised, plan.newlyOverdue)
			s.afterCommit(ctx, plan)
			return
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			log.Printf("[ESCALATION] failed to save complaint %s: %v", id, err)
			report.Record(s.failed(id, err), false, false)
			return
		}
		log.Printf("[ESCALATION] version conflict on %s (attempt %d), reloading", id, attempt+1)
	}

	report.Record(models.EscalationResult{
		ComplaintID: id,
		Outcome:     models.OutcomeConflict,
		Reason:      models.ErrVersionConflict.Message,
		ProcessedAt: s.clock.Now(),
	}, false, false)
}

// evaluate derives the next snapshot without touching the store
func (s *EscalationService) evaluate(ctx context.Context, current *models.Complaint, now time.Time) (escalationPlan, error) {
	next := current.Clone()
	changed := false
	plan := escalationPlan{}

	if next.SLA.TargetResolutionDate == nil {
		target := s.policy.ComputeTarget(next.Category, next.CreatedAt)
		next.SLA.TargetResolutionDate = &target
		plan.initialised = true
		changed = true
	}

	overdue := s.policy.IsOverdue(next, now)
	if overdue && !next.SLA.IsOverdue {
		next.SLA.IsOverdue = true
		plan.newlyOverdue = true
		changed = true
	}

	plan.result = models.EscalationResult{
		ComplaintID:    next.ID,
		Outcome:        models.OutcomeUnchanged,
		Level:          next.SLA.EscalationLevel,
		HoursRemaining: s.policy.HoursRemaining(next, now),
		ProcessedAt:    now,
	}

	if overdue {
		level, reason := nextEscalationLevel(now.Sub(next.CreatedAt), next.SLA.EscalationLevel)
		if level > 0 && !next.SLA.HasEscalatedTo(level) {
			target, err := s.selectTarget(ctx, level, next.AssignedTo)
			if err != nil {
				return plan, fmt.Errorf("failed to select escalation target: %w", err)
			}

			entry := models.EscalationEntry{
				Level:       level,
				EscalatedAt: now,
				Reason:      reason,
			}
			if target != nil {
				entry.EscalatedTo = models.StringPtr(target.ID)
				plan.reassigned = next.AssignedTo == nil || *next.AssignedTo != target.ID
				next.AssignedTo = models.StringPtr(target.ID)
			} else {
				log.Printf("[ESCALATION] WARNING no eligible admin for complaint %s at level %d - escalating without reassignment", next.ID, level)
			}
			next.SLA.EscalationHistory = append(next.SLA.EscalationHistory, entry)
			next.SLA.EscalationLevel = level
			changed = true

			plan.target = target
			plan.result.Outcome = models.OutcomeEscalated
			plan.result.Escalated = true
			plan.result.Level = level
			plan.result.EscalatedTo = entry.EscalatedTo
			plan.result.Reason = reason
		}
	} else if s.policy.InWarningWindow(next, now) {
		plan.result.Outcome = models.OutcomeWarning
		plan.result.Reason = fmt.Sprintf("%.1f hours left before SLA breach", plan.result.HoursRemaining)
	}

	if plan.result.Outcome == models.OutcomeUnchanged {
		switch {
		case plan.newlyOverdue:
			plan.result.Outcome = models.OutcomeOverdue
		case plan.initialised:
			plan.result.Outcome = models.OutcomeInitialised
		}
	}

	if changed {
		next.UpdatedAt = now
		plan.next = next
	}
	return plan, nil
}

// nextEscalationLevel returns the single level a complaint open for
// elapsed should move to, or 0 when no threshold applies.
func nextEscalationLevel(elapsed time.Duration, currentLevel int) (int, string) {
	if currentLevel >= models.MaxEscalationLevel {
		return 0, ""
	}
	for _, t := range escalationThresholds {
		if elapsed > t.after && currentLevel < t.level {
			return t.level, t.reason
		}
	}
	return 0, ""
}

// selectTarget picks the admin to receive an escalated complaint.
// Level 3 goes to any active super_admin. Level 2 goes to an admin with
// assignment privilege, preferring someone other than the current
// assignee. Level 1 goes to any active admin other than the current assignee.
func (s *EscalationService) selectTarget(ctx context.Context, level int, currentAssignee *string) (*models.Admin, error) {
	if s.admins == nil {
		return nil, nil
	}
	current := ""
	if currentAssignee != nil {
		current = *currentAssignee
	}

	switch level {
	case 3:
		admins, err := s.admins.FindActiveByRole(ctx, models.RoleSuperAdmin)
		if err != nil {
			return nil, err
		}
		return firstAdmin(admins), nil

	case 2:
		var fallback *models.Admin
		for _, role := range models.AssignmentRoles {
			admins, err := s.admins.FindActiveByRole(ctx, role)
			if err != nil {
				return nil, err
			}
			for i := range admins {
				if admins[i].ID != current {
					return &admins[i], nil
				}
				if fallback == nil {
					fallback = &admins[i]
				}
			}
		}
		return fallback, nil

	default:
		admins, err := s.admins.FindActiveExcluding(ctx, current)
		if err != nil {
			return nil, err
		}
		return firstAdmin(admins), nil
	}
}

// afterCommit writes the audit trail and sends notifications. Nothing here
// can undo the committed escalation.
func (s *EscalationService) afterCommit(ctx context.Context, plan escalationPlan) {
	if plan.initialised {
		log.Printf("[ESCALATION] complaint %s SLA target initialised to %s", plan.next.ID, plan.next.SLA.TargetResolutionDate.Format(time.RFC3339))
	}
	if plan.newlyOverdue {
		log.Printf("[ESCALATION] complaint %s is now overdue", plan.next.ID)
	}
	if !plan.result.Escalated {
		return
	}

	escalatedTo := ""
	if plan.target != nil {
		escalatedTo = plan.target.ID
	}
	log.Printf("[ESCALATION] ESCALATION FIRED complaint_id=%s new_escalation_level=%d escalated_to=%q reason=%q",
		plan.next.ID, plan.result.Level, escalatedTo, plan.result.Reason)

	s.logEscalationAction(ctx, plan.next.ID, map[string]interface{}{
		"escalation_level": plan.result.Level,
		"escalated_to":     escalatedTo,
		"reassigned":       plan.reassigned,
		"reason":           plan.result.Reason,
	})

	if s.notifier == nil {
		return
	}
	if plan.target != nil && plan.reassigned {
		s.dispatch(ctx, models.KindAssigned, plan.next, map[string]string{
			models.MetaEvent:          "escalation_assignment",
			models.MetaRecipientEmail: plan.target.Email,
			models.MetaRecipientName:  plan.target.Name,
			models.MetaLevel:          fmt.Sprint(plan.result.Level),
			models.MetaReason:         plan.result.Reason,
		})
	}
	escalated := map[string]string{
		models.MetaEvent:  "escalated",
		models.MetaLevel:  fmt.Sprint(plan.result.Level),
		models.MetaReason: plan.result.Reason,
	}
	if plan.target != nil {
		escalated[models.MetaEscalatedTo] = plan.target.ID
		escalated[models.MetaRecipientName] = plan.target.Name
	}
	s.dispatch(ctx, models.KindEscalated, plan.next, escalated)
}

// dispatch sends one notification bounded by the notify timeout
func (s *EscalationService) dispatch(ctx context.Context, kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) {
	if s.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
	defer cancel()

	result := s.notifier.Notify(notifyCtx, kind, complaint, metadata)
	if !result.Delivered {
		log.Printf("[ESCALATION] %s notification for %s not delivered: %s", kind, complaint.ID, result.Error)
	}
}

// logEscalationAction logs escalation actions to audit_log
func (s *EscalationService) logEscalationAction(ctx context.Context, complaintID string, data map[string]interface{}) {
	if s.audit == nil {
		return
	}
	metadata, _ := json.Marshal(data)
	entry := &models.AuditLog{
		EntityType:   "complaint",
		EntityID:     complaintID,
		Action:       "escalation",
		ActionByType: models.ActorSystem,
		CreatedAt:    s.clock.Now(),
	}
	entry.ActionBy.String, entry.ActionBy.Valid = models.SystemActor, true
	entry.Metadata.String, entry.Metadata.Valid = string(metadata), true
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		// audit logging should be resilient
		log.Printf("[ESCALATION] failed to write audit log for %s: %v", complaintID, err)
	}
}

func (s *EscalationService) failed(id string, err error) models.EscalationResult {
	return models.EscalationResult{
		ComplaintID: id,
		Outcome:     models.OutcomeFailed,
		Reason:      err.Error(),
		ProcessedAt: s.clock.Now(),
	}
}

func firstAdmin(admins []models.Admin) *models.Admin {
	if len(admins) == 0 {
		return nil
	}
	return &admins[0]
}
