package middleware

import (
	"context"

	"grievance/models"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	adminKey  contextKey = "admin"
)

// AdminIdentity is the authenticated administrator of a request
type AdminIdentity struct {
	ID   string
	Role models.AdminRole
}

// WithUserID returns a context carrying the citizen id
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated citizen id, if any
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithAdmin returns a context carrying the admin identity
func WithAdmin(ctx context.Context, admin AdminIdentity) context.Context {
	return context.WithValue(ctx, adminKey, admin)
}

// AdminFromContext returns the authenticated admin, if any
func AdminFromContext(ctx context.Context) (AdminIdentity, bool) {
	admin, ok := ctx.Value(adminKey).(AdminIdentity)
	return admin, ok
}
