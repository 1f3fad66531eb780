package service

import (
	"strings"
	"time"

	"grievance/models"
)

// allowedTransitions lists the forward moves of the lifecycle. The
// absorbing exits (rejected, duplicate) are reachable from any
// non-terminal state and are handled separately.
var allowedTransitions = map[models.ComplaintStatus][]models.ComplaintStatus{
	models.StatusPending:    {models.StatusInProgress},
	models.StatusInProgress: {models.StatusResolved},
}

// TransitionInput carries the parameters of a status change
type TransitionInput struct {
	NewStatus   models.ComplaintStatus
	Actor       string
	Remarks     string
	DuplicateOf string
	Now         time.Time
}

// Transition applies a status change to a snapshot and returns the new
// snapshot. The input complaint is never modified; version and
// persistence are the caller's concern.
func Transition(complaint *models.Complaint, in TransitionInput) (*models.Complaint, error) {
	if strings.TrimSpace(in.Actor) == "" {
		return nil, models.ErrActorRequired
	}
	if !in.NewStatus.Valid() {
		return nil, models.NewValidationError("unknown status " + string(in.NewStatus))
	}
	if !isValidStatusTransition(complaint.Status, in.NewStatus) {
		return nil, models.NewInvalidTransitionError(complaint.Status, in.NewStatus)
	}

	duplicateOf := strings.TrimSpace(in.DuplicateOf)
	if in.NewStatus == models.StatusDuplicate && (duplicateOf == "" || duplicateOf == complaint.ID) {
		return nil, models.ErrMissingDuplicateReference
	}

	// History must stay ordered even if the clock steps backwards.
	changedAt := in.Now.UTC()
	if last := complaint.LastStatusChange(); !last.ChangedAt.IsZero() && changedAt.Before(last.ChangedAt) {
		changedAt = last.ChangedAt
	}

	next := complaint.Clone()
	next.Status = in.NewStatus
	next.StatusHistory = append(next.StatusHistory, models.StatusHistoryEntry{
		Status:    in.NewStatus,
		ChangedAt: changedAt,
		ChangedBy: in.Actor,
		Remarks:   in.Remarks,
	})
	next.UpdatedAt = changedAt

	switch in.NewStatus {
	case models.StatusResolved:
		next.ResolvedAt = models.TimePtr(changedAt)
	case models.StatusDuplicate:
		next.DuplicateOf = models.StringPtr(duplicateOf)
	}

	return next, nil
}

// isValidStatusTransition checks the lifecycle graph
func isValidStatusTransition(from, to models.ComplaintStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == models.StatusRejected || to == models.StatusDuplicate {
		return true
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to models.ComplaintStatus) bool {
	return isValidStatusTransition(from, to)
}
