package models

import "time"

// AdminRole is the privilege tier of an administrator
type AdminRole string

const (
	RoleSuperAdmin      AdminRole = "super_admin"
	RoleDepartmentAdmin AdminRole = "department_admin"
	RoleFieldOfficer    AdminRole = "field_officer"
)

// AssignmentRoles lists the roles allowed to (re)assign complaints,
// most specific first.
var AssignmentRoles = []AdminRole{RoleDepartmentAdmin, RoleSuperAdmin}

// Valid reports whether r is a known role
func (r AdminRole) Valid() bool {
	return r == RoleSuperAdmin || r == RoleDepartmentAdmin || r == RoleFieldOfficer
}

// CanAssign reports whether the role carries assignment privilege
func (r AdminRole) CanAssign() bool {
	for _, role := range AssignmentRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Admin represents an administrator from the admins table
type Admin struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Role         AdminRole `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
