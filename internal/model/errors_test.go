package model

import (
	"errors"
	"testing"
)

// APIErrorがerrorインターフェースを満たし、コードとメッセージを含むことを検証
func TestAPIError_Error_ContainsCodeAndMessage(t *testing.T) {
	err := NewEmailConflictError()

	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty error message")
	}
	if err.Code != ErrCodeEmailConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrCodeEmailConflict)
	}
}

// errors.AsでAPIErrorを取り出せることを検証
func TestAPIError_ErrorsAs(t *testing.T) {
	var wrapped error = NewInvalidCredentialsError()

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As should extract *APIError")
	}
	if apiErr.Category != "auth" {
		t.Errorf("Category = %q, want %q", apiErr.Category, "auth")
	}
}

// Roleの有効値判定を検証
func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleUser, true},
		{RoleAdmin, true},
		{Role("superuser"), false},
		{Role(""), false},
	}

	for _, tt := range tests {
		if got := tt.role.Valid(); got != tt.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tt.role, got, tt.want)
		}
	}
}

// パスワードハッシュ有無の判定を検証
func TestUser_HasPassword(t *testing.T) {
	withHash := &User{PasswordHash: "$2a$10$abcdefg"}
	if !withHash.HasPassword() {
		t.Error("user with hash should have password")
	}

	delegated := &User{PasswordHash: ""}
	if delegated.HasPassword() {
		t.Error("delegated-only user should not have password")
	}
}
