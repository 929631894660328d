package auth

import (
	"errors"
	"testing"
	"time"

	"susu/internal/core"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	user := core.User{ID: "u1", Email: "admin@example.com", Role: core.RoleAdmin}

	token, err := m.Generate(user)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := m.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "admin@example.com" || claims.Role != core.RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager(secret, time.Hour)
	user := core.User{ID: "u1", Email: "a@example.com", Role: core.RoleViewer}
	token, _ := m.Generate(user)

	other := NewJWTManager("ffffffffffffffffffffffffffffffff", time.Hour)
	expired := NewJWTManager(secret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tests := []struct {
		name  string
		mgr   *JWTManager
		token string
	}{
		{"wrong secret", other, token},
		{"expired", expired, token},
		{"garbage", m, "not-a-token"},
		{"empty", m, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.mgr.Validate(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("Validate = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestPasswords(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("ValidatePassword(short) = %v", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Fatalf("ValidatePassword = %v", err)
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("CheckPassword(correct) = %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("CheckPassword(wrong) = %v", err)
	}
}
