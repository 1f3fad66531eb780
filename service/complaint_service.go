package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"grievance/models"
)

// ComplaintService handles business logic for complaints
type ComplaintService struct {
	store         ComplaintStore
	detector      *DuplicateDetector
	policy        *SLAPolicy
	ids           *IDGenerator
	admins        AdminDirectory // optional; required for AssignComplaint
	audit         AuditLogger    // optional
	notifier      Notifier       // optional
	clock         Clock
	notifyTimeout time.Duration

	pending sync.WaitGroup // in-flight async notifications
}

// NewComplaintService creates a new complaint service
func NewComplaintService(
	store ComplaintStore,
	detector *DuplicateDetector,
	policy *SLAPolicy,
	ids *IDGenerator,
	admins AdminDirectory,
	audit AuditLogger,
	notifier Notifier,
	clock Clock,
) *ComplaintService {
	if clock == nil {
		clock = SystemClock{}
	}
	if policy == nil {
		policy = DefaultSLAPolicy()
	}
	return &ComplaintService{
		store:         store,
		detector:      detector,
		policy:        policy,
		ids:           ids,
		admins:        admins,
		audit:         audit,
		notifier:      notifier,
		clock:         clock,
		notifyTimeout: defaultNotifyTimeout,
	}
}

const defaultNotifyTimeout = 10 * time.Second

// SetNotifyTimeout bounds each async notification; non-positive values keep the default
func (s *ComplaintService) SetNotifyTimeout(d time.Duration) {
	if d > 0 {
		s.notifyTimeout = d
	}
}

// SubmitComplaint runs the duplicate check and, unless a duplicate was
// found and not overridden, creates the complaint.
//
// Lifecycle Rules:
// 1. New complaints start as 'pending' with a single history entry
// 2. The SLA target is computed from the category at creation time
// 3. A duplicate index failure never blocks the submission
func (s *ComplaintService) SubmitComplaint(ctx context.Context, req *models.SubmitComplaintRequest) (*models.SubmitComplaintResponse, error) {
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	duplicate := models.DuplicateResult{Candidates: []models.DuplicateCandidate{}}
	if s.detector != nil {
		var err error
		duplicate, err = s.detector.CheckDuplicate(ctx, req.Location.Longitude, req.Location.Latitude, req.Category)
		if err != nil {
			return nil, err
		}
	}

	if duplicate.IsDuplicate && !req.ConfirmNotDuplicate {
		return &models.SubmitComplaintResponse{
			Created:   false,
			Duplicate: duplicate,
			Message:   "Similar complaints already exist nearby. Confirm to submit anyway.",
		}, nil
	}

	now := s.clock.Now()
	id, err := s.ids.Next(ctx, now)
	if err != nil {
		return nil, models.NewStoreError("generate complaint id", err)
	}

	reporterID := req.Reporter.UserID
	if reporterID == "" {
		reporterID = string(models.ActorUser)
	}

	target := s.policy.ComputeTarget(req.Category, now)
	complaint := &models.Complaint{
		ID:                id,
		Title:             strings.TrimSpace(req.Title),
		Description:       strings.TrimSpace(req.Description),
		Category:          req.Category,
		Location:          req.Location,
		Reporter:          req.Reporter,
		Status:            models.StatusPending,
		DuplicateOverride: duplicate.IsDuplicate && req.ConfirmNotDuplicate,
		StatusHistory: []models.StatusHistoryEntry{{
			Status:    models.StatusPending,
			ChangedAt: now,
			ChangedBy: reporterID,
			Remarks:   "Complaint submitted",
		}},
		SLA: models.SLAInfo{
			TargetResolutionDate: &target,
			EscalationHistory:    []models.EscalationEntry{},
		},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}

	if err := s.store.Create(ctx, complaint); err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}
	log.Printf("[complaint] created %s category=%s target=%s duplicate_override=%t",
		complaint.ID, complaint.Category, target.Format(time.RFC3339), complaint.DuplicateOverride)

	s.logAudit(ctx, complaint.ID, "create", models.ActorUser, reporterID, map[string]interface{}{
		"category":           complaint.Category,
		"duplicate_override": complaint.DuplicateOverride,
		"duplicate_checked":  duplicate.Checked,
	})
	s.notifyAsync(models.KindStatusChanged, complaint, map[string]string{
		models.MetaEvent: "submitted",
	})

	return &models.SubmitComplaintResponse{
		Created:   true,
		Complaint: complaint,
		Duplicate: duplicate,
		Message:   "Complaint submitted successfully",
	}, nil
}

// CheckDuplicate exposes the detector to callers that want to warn early
func (s *ComplaintService) CheckDuplicate(ctx context.Context, req *models.DuplicateCheckRequest) (models.DuplicateResult, error) {
	if s.detector == nil {
		return models.DuplicateResult{Candidates: []models.DuplicateCandidate{}}, nil
	}
	return s.detector.CheckDuplicate(ctx, req.Longitude, req.Latitude, req.Category)
}

// GetComplaint loads a complaint. A non-empty requestingUserID restricts
// access to the reporter; others get NotFound.
func (s *ComplaintService) GetComplaint(ctx context.Context, id, requestingUserID string) (*models.Complaint, error) {
	complaint, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if requestingUserID != "" && complaint.Reporter.UserID != requestingUserID {
		return nil, models.NewNotFoundError(id)
	}
	return complaint, nil
}

// GetStatusTimeline returns the append-only status history
func (s *ComplaintService) GetStatusTimeline(ctx context.Context, id, requestingUserID string) ([]models.StatusHistoryEntry, error) {
	complaint, err := s.GetComplaint(ctx, id, requestingUserID)
	if err != nil {
		return nil, err
	}
	return complaint.StatusHistory, nil
}

// GetSLAStatus reports the SLA position of a complaint
func (s *ComplaintService) GetSLAStatus(ctx context.Context, id, requestingUserID string) (*models.SLAStatus, error) {
	complaint, err := s.GetComplaint(ctx, id, requestingUserID)
	if err != nil {
		return nil, err
	}
	status := s.policy.Status(complaint, s.clock.Now())
	return &status, nil
}

// UpdateStatus applies a lifecycle transition with optimistic concurrency.
// A version conflict is retried once against a fresh snapshot.
func (s *ComplaintService) UpdateStatus(ctx context.Context, id string, req *models.UpdateStatusRequest, actor string) (*models.Complaint, error) {
	var previous models.ComplaintStatus
	updated, err := s.mutate(ctx, id, func(current *models.Complaint) (*models.Complaint, error) {
		previous = current.Status
		return Transition(current, TransitionInput{
			NewStatus:   req.Status,
			Actor:       actor,
			Remarks:     req.Remarks,
			DuplicateOf: req.DuplicateOf,
			Now:         s.clock.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[complaint] %s status %s -> %s by %s", id, previous, updated.Status, actor)
	s.logAudit(ctx, id, "status_change", models.ActorAdmin, actor, map[string]interface{}{
		"old_status":   previous,
		"new_status":   updated.Status,
		"remarks":      req.Remarks,
		"duplicate_of": req.DuplicateOf,
	})
	s.notifyAsync(models.KindStatusChanged, updated, map[string]string{
		models.MetaEvent:          "status_changed",
		models.MetaPreviousStatus: string(previous),
		models.MetaRemarks:        req.Remarks,
	})
	return updated, nil
}

// MarkDuplicate closes a complaint as a duplicate of another one
func (s *ComplaintService) MarkDuplicate(ctx context.Context, id, originalID, actor, remarks string) (*models.Complaint, error) {
	return s.UpdateStatus(ctx, id, &models.UpdateStatusRequest{
		Status:      models.StatusDuplicate,
		Remarks:     remarks,
		DuplicateOf: originalID,
	}, actor)
}

// AssignComplaint (re)assigns an open complaint to an active administrator
func (s *ComplaintService) AssignComplaint(ctx context.Context, id string, req *models.AssignComplaintRequest, actor string) (*models.Complaint, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, models.ErrActorRequired
	}
	if s.admins == nil {
		return nil, fmt.Errorf("admin directory not configured")
	}
	admin, err := s.admins.GetByID(ctx, req.AdminID)
	if err != nil {
		return nil, err
	}
	if admin == nil || !admin.IsActive {
		return nil, models.NewValidationError("admin " + req.AdminID + " is not an active administrator")
	}

	changed := false
	updated, err := s.mutate(ctx, id, func(current *models.Complaint) (*models.Complaint, error) {
		if current.Status.IsTerminal() {
			return nil, &models.GrievanceError{
				Code:    models.CodeInvalidTransition,
				Message: "cannot assign a complaint in terminal status " + string(current.Status),
			}
		}
		if current.AssignedTo != nil && *current.AssignedTo == admin.ID {
			changed = false
			return nil, nil
		}
		next := current.Clone()
		next.AssignedTo = models.StringPtr(admin.ID)
		next.UpdatedAt = s.clock.Now()
		changed = true
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return updated, nil
	}

	log.Printf("[complaint] %s assigned to %s by %s", id, admin.ID, actor)
	s.logAudit(ctx, id, "assignment", models.ActorAdmin, actor, map[string]interface{}{
		"assigned_to": admin.ID,
		"remarks":     req.Remarks,
	})
	s.notifyAsync(models.KindAssigned, updated, map[string]string{
		models.MetaEvent:          "manual_assignment",
		models.MetaRecipientEmail: admin.Email,
		models.MetaRecipientName:  admin.Name,
		models.MetaRemarks:        req.Remarks,
	})
	return updated, nil
}

// WaitForNotifications blocks until async notifications have finished.
// Call it during shutdown before stopping the dispatcher.
func (s *ComplaintService) WaitForNotifications() {
	s.pending.Wait()
}

// mutate runs load -> change -> save(expectedVersion). fn returning a nil
// complaint means "nothing to change". A version conflict is retried once.
func (s *ComplaintService) mutate(
	ctx context.Context,
	id string,
	fn func(current *models.Complaint) (*models.Complaint, error),
) (*models.Complaint, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		current, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}

		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return current, nil
		}

		err = s.store.Save(ctx, next, current.Version)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return nil, err
		}
		log.Printf("[complaint] version conflict on %s (attempt %d), reloading", id, attempt+1)
		lastErr = err
	}
	return nil, lastErr
}

// notifyAsync dispatches after the write has committed; failures are logged only
func (s *ComplaintService) notifyAsync(kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) {
	if s.notifier == nil {
		return
	}
	snapshot := complaint.Clone()
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		result := s.notifier.Notify(ctx, kind, snapshot, metadata)
		if !result.Delivered {
			log.Printf("[complaint] %s notification for %s not delivered: %s", kind, snapshot.ID, result.Error)
		}
	}()
}

// logAudit writes an audit entry; audit logging should be resilient
func (s *ComplaintService) logAudit(ctx context.Context, complaintID, action string, actorType models.ActorType, actor string, data map[string]interface{}) {
	if s.audit == nil {
		return
	}
	metadata, _ := json.Marshal(data)
	entry := &models.AuditLog{
		EntityType:   "complaint",
		EntityID:     complaintID,
		Action:       action,
		ActionByType: actorType,
		CreatedAt:    s.clock.Now(),
	}
	entry.ActionBy.String, entry.ActionBy.Valid = actor, actor != ""
	entry.Metadata.String, entry.Metadata.Valid = string(metadata), true
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[complaint] failed to write audit log for %s: %v", complaintID, err)
	}
}

func validateSubmission(req *models.SubmitComplaintRequest) error {
	if req == nil {
		return models.NewValidationError("request body is required")
	}
	if !req.Category.Valid() {
		return models.NewValidationError("unknown category " + string(req.Category))
	}
	if err := req.Location.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Description) == "" {
		return models.NewValidationError("title or description is required")
	}
	return nil
}
