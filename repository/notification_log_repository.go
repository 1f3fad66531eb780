package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grievance/models"
)

// NotificationLogRepository handles the notification_log table
type NotificationLogRepository struct {
	db *sql.DB
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *sql.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// CreateNotificationLog records one delivery attempt
func (r *NotificationLogRepository) CreateNotificationLog(ctx context.Context, entry *models.NotificationLog) error {
	if entry.LogID == "" {
		entry.LogID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notification_log (
			log_id, kind, complaint_id, channel, recipient, status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.LogID,
		entry.Kind,
		entry.ComplaintID,
		entry.Channel,
		entry.Recipient,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification log: %w", err)
	}
	return nil
}

// ListByComplaint returns delivery attempts for a complaint, oldest first
func (r *NotificationLogRepository) ListByComplaint(ctx context.Context, complaintID string) ([]models.NotificationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT log_id, kind, complaint_id, channel, recipient, status, error_message, created_at
		FROM notification_log
		WHERE complaint_id = ?
		ORDER BY created_at, log_id`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification log: %w", err)
	}
	defer rows.Close()

	logs := make([]models.NotificationLog, 0)
	for rows.Next() {
		var l models.NotificationLog
		if err := rows.Scan(&l.LogID, &l.Kind, &l.ComplaintID, &l.Channel, &l.Recipient, &l.Status, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
