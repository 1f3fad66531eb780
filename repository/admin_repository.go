package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"grievance/models"
	"grievance/utils"
)

// AdminRepository handles database operations for administrators
type AdminRepository struct {
	db *sql.DB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *sql.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, name, email, role, is_active, password_hash, created_at`

// CreateAdmin inserts an administrator. PasswordHash must already be a bcrypt hash.
func (r *AdminRepository) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now().UTC()
	}
	admin.Email = strings.ToLower(strings.TrimSpace(admin.Email))

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (`+adminColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		admin.ID, admin.Name, admin.Email, admin.Role, admin.IsActive, admin.PasswordHash, admin.CreatedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return models.NewValidationError("admin " + admin.Email + " already exists")
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// SetActive enables or disables an administrator
func (r *AdminRepository) SetActive(ctx context.Context, adminID string, active bool) error {
	result, err := r.db.ExecContext(ctx, `UPDATE admins SET is_active = ? WHERE id = ?`, active, adminID)
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.NewNotFoundError(adminID)
	}
	return nil
}

// ValidateCredentials checks email and password for admin login. Passwords are stored as bcrypt hashes.
func (r *AdminRepository) ValidateCredentials(ctx context.Context, email, password string) (*models.Admin, error) {
	admin, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !admin.IsActive {
		return nil, fmt.Errorf("admin account is inactive")
	}
	if err := utils.CheckAdminPassword(password, admin.PasswordHash); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	return admin, nil
}

// GetByID returns the admin or nil if none exists
func (r *AdminRepository) GetByID(ctx context.Context, adminID string) (*models.Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, adminID)
	return scanAdminRow(row)
}

// GetByEmail returns the admin with email or nil
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminColumns+` FROM admins WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanAdminRow(row)
}

// FindActiveByRole lists active admins with role, ordered by id
func (r *AdminRepository) FindActiveByRole(ctx context.Context, role models.AdminRole) ([]models.Admin, error) {
	return r.queryAdmins(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE is_active = ? AND role = ? ORDER BY id`, true, role)
}

// FindActiveExcluding lists active admins other than adminID, ordered by id
func (r *AdminRepository) FindActiveExcluding(ctx context.Context, adminID string) ([]models.Admin, error) {
	return r.queryAdmins(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE is_active = ? AND id <> ? ORDER BY id`, true, adminID)
}

func (r *AdminRepository) queryAdmins(ctx context.Context, query string, args ...interface{}) ([]models.Admin, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	admins := make([]models.Admin, 0)
	for rows.Next() {
		var a models.Admin
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.IsActive, &a.PasswordHash, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		admins = append(admins, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admins: %w", err)
	}
	return admins, nil
}

func scanAdminRow(row *sql.Row) (*models.Admin, error) {
	var a models.Admin
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.IsActive, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
