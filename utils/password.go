package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Admin password bounds. bcrypt ignores input past 72 bytes.
const (
	MinAdminPasswordLength = 8
	MaxAdminPasswordLength = 72
)

// ValidateAdminPassword checks the length bounds before hashing
func ValidateAdminPassword(plain string) error {
	if len(plain) < MinAdminPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinAdminPasswordLength)
	}
	if len(plain) > MaxAdminPasswordLength {
		return fmt.Errorf("password must be at most %d bytes", MaxAdminPasswordLength)
	}
	return nil
}

// HashAdminPassword stores only the bcrypt hash of an admin password
func HashAdminPassword(plain string) (string, error) {
	if err := ValidateAdminPassword(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

// CheckAdminPassword returns nil if plain matches the stored hash
func CheckAdminPassword(plain, hashed string) error {
	if hashed == "" {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
