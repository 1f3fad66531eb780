package utils

import (
	"strings"
	"testing"
)

func TestAdminPassword(t *testing.T) {
	hash, err := HashAdminPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashAdminPassword: %v", err)
	}
	if hash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}
	if err := CheckAdminPassword("correct-horse", hash); err != nil {
		t.Errorf("matching password rejected: %v", err)
	}
	if err := CheckAdminPassword("battery-staple", hash); err == nil {
		t.Error("wrong password accepted")
	}
	if err := CheckAdminPassword("correct-horse", ""); err == nil {
		t.Error("empty hash accepted")
	}
}

func TestValidateAdminPassword(t *testing.T) {
	tests := []struct {
		name    string
		plain   string
		wantErr bool
	}{
		{"too short", "short", true},
		{"minimum", "12345678", false},
		{"maximum", strings.Repeat("x", 72), false},
		{"too long", strings.Repeat("x", 73), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAdminPassword(tt.plain)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAdminPassword() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
