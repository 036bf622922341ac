package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManagerRoundtrip(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-unit-tests", time.Hour)

	token, err := manager.Generate("member-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "member-1" {
		t.Errorf("UserID = %s, want member-1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %s, want alice@example.com", claims.Email)
	}
}

func TestJWTManagerRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-unit-tests", -time.Minute)

	token, err := manager.Generate("member-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManagerRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret-one", time.Hour).Generate("member-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := NewJWTManager("secret-two", time.Hour).Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrInvalidToken)
	}
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-unit-tests", time.Hour)
	if _, err := manager.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("Validate() error = %v, want %v", err, ErrInvalidToken)
	}
}
