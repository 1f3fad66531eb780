package middleware

import (
	"context"
	"net/http"

	"grievance/models"
)

// AdminLookup resolves the admin behind a token
type AdminLookup interface {
	GetByID(ctx context.Context, adminID string) (*models.Admin, error)
}

// AdminAuthMiddleware validates admin JWTs. The role is read from the
// admins table, not from the token, so demotions apply immediately.
type AdminAuthMiddleware struct {
	admins    AdminLookup
	jwtSecret []byte
}

// NewAdminAuthMiddleware creates a new admin auth middleware
func NewAdminAuthMiddleware(admins AdminLookup, jwtSecret string) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{admins: admins, jwtSecret: []byte(jwtSecret)}
}

// RequireAdminAuth validates the token, checks the admin is still active
// and sets the admin identity in context.
func (m *AdminAuthMiddleware) RequireAdminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := parseBearer(r, m.jwtSecret)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		if at, _ := claims["actor_type"].(string); at != string(models.ActorAdmin) {
			respondWithError(w, http.StatusForbidden, "Forbidden", "Admin token required")
			return
		}
		adminID, _ := claims["admin_id"].(string)
		if adminID == "" {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token: admin_id not found.")
			return
		}

		admin, err := m.admins.GetByID(r.Context(), adminID)
		if err != nil {
			respondWithError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to verify admin")
			return
		}
		if admin == nil || !admin.IsActive {
			respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Admin not found or inactive")
			return
		}

		ctx := WithAdmin(r.Context(), AdminIdentity{ID: admin.ID, Role: admin.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows the request only for the listed roles. It must run
// after RequireAdminAuth.
func RequireRole(roles ...models.AdminRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, ok := AdminFromContext(r.Context())
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "Unauthorized", "Admin authentication required")
				return
			}
			for _, role := range roles {
				if admin.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			respondWithError(w, http.StatusForbidden, "Forbidden", "Insufficient role")
		})
	}
}
