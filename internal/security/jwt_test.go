package security

import (
	"errors"
	"testing"
	"time"
)

func TestUserTokenRoundTrip(t *testing.T) {
	token, errGenerate := GenerateToken("secret", 42, "alice", "alice@example.com", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}

	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, errGenerate := GenerateToken("secret", 42, "alice", "", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if _, errParse := ParseToken("other", token); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, errGenerate := GenerateToken("secret", 42, "alice", "", -time.Minute)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	if _, errParse := ParseToken("secret", token); !errors.Is(errParse, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", errParse)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, errParse := ParseToken("secret", "not.a.jwt"); !errors.Is(errParse, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", errParse)
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	token, errGenerate := GenerateAdminToken("secret", 7, "root", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	claims, errParse := ParseAdminToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.AdminID != 7 || claims.Username != "root" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAdminTokenIsNotAUserToken(t *testing.T) {
	token, errGenerate := GenerateAdminToken("secret", 7, "root", time.Hour)
	if errGenerate != nil {
		t.Fatalf("generate: %v", errGenerate)
	}
	claims, errParse := ParseToken("secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 0 {
		t.Fatalf("admin token must not carry a user id, got %d", claims.UserID)
	}
}
