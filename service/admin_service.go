package service

import (
	"context"
	"fmt"
	"strings"

	"grievance/models"
	"grievance/utils"
)

// AdminStore persists administrators and checks their credentials
type AdminStore interface {
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	ValidateCredentials(ctx context.Context, email, password string) (*models.Admin, error)
}

// AdminService handles admin accounts and login
type AdminService struct {
	store       AdminStore
	jwtSecret   []byte
	expiryHours int
}

// NewAdminService creates a new admin service
func NewAdminService(store AdminStore, jwtSecret string, expiryHours int) *AdminService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &AdminService{store: store, jwtSecret: []byte(jwtSecret), expiryHours: expiryHours}
}

// Login validates credentials and issues an admin token
func (s *AdminService) Login(ctx context.Context, req *models.AdminLoginRequest) (*models.AdminLoginResponse, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, models.NewValidationError("email and password are required")
	}
	admin, err := s.store.ValidateCredentials(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	token, err := utils.GenerateAdminJWT(admin.ID, string(admin.Role), s.jwtSecret, s.expiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.AdminLoginResponse{Token: token, Admin: *admin}, nil
}

// CreateAdmin hashes the password and stores a new active administrator
func (s *AdminService) CreateAdmin(ctx context.Context, name, email string, role models.AdminRole, password string) (*models.Admin, error) {
	if strings.TrimSpace(name) == "" || !strings.Contains(email, "@") {
		return nil, models.NewValidationError("name and a valid email are required")
	}
	if !role.Valid() {
		return nil, models.NewValidationError("unknown role " + string(role))
	}
	if err := utils.ValidateAdminPassword(password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	hash, err := utils.HashAdminPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         role,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
