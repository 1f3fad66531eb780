package service

import (
	"context"
	"time"

	"grievance/models"
)

// ComplaintStore persists complaints. Save must fail with
// models.ErrVersionConflict when the stored version differs from
// expectedVersion, and must apply the whole record atomically.
type ComplaintStore interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	Load(ctx context.Context, id string) (*models.Complaint, error)
	Save(ctx context.Context, complaint *models.Complaint, expectedVersion int64) error
	ListOpen(ctx context.Context) ([]string, error)
	NextSequence(ctx context.Context, day string) (int64, error)
}

// GeoIndex answers "records within radius R and window T matching category C".
// Candidates come back with Distance filled in and already limited to the radius.
type GeoIndex interface {
	FindNearby(ctx context.Context, query models.DuplicateQuery) ([]models.DuplicateCandidate, error)
}

// AdminDirectory looks up administrators eligible for assignment. Lists
// are ordered by admin id; GetByID returns nil, nil for an unknown id.
type AdminDirectory interface {
	FindActiveByRole(ctx context.Context, role models.AdminRole) ([]models.Admin, error)
	FindActiveExcluding(ctx context.Context, adminID string) ([]models.Admin, error)
	GetByID(ctx context.Context, adminID string) (*models.Admin, error)
}

// AuditLogger records audit trail entries. Failures are logged by callers
// and never change the outcome of the audited operation.
type AuditLogger interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// Notifier is the outbound notification port. It never returns an error;
// delivery problems are reported in the result.
type Notifier interface {
	Notify(ctx context.Context, kind models.NotificationKind, complaint *models.Complaint, metadata map[string]string) models.DispatchResult
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
