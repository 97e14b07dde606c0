package auth

import (
	"testing"
	"time"
)

func testConfig() TokenConfig {
	return TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "wabridge"}
}

func TestCreateAndVerifyToken(t *testing.T) {
	token, err := CreateToken(RealtimeScope, testConfig())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := VerifyToken(token, testConfig())
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.Scope != RealtimeScope {
		t.Fatalf("expected realtime scope, got %q", claims.Scope)
	}
	if claims.Issuer != "wabridge" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestCreateToken_Validation(t *testing.T) {
	if _, err := CreateToken("", testConfig()); err == nil {
		t.Fatalf("expected error for empty scope")
	}
	if _, err := CreateToken(RealtimeScope, TokenConfig{Expiry: time.Hour}); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := CreateToken(RealtimeScope, TokenConfig{Secret: "s", Expiry: 0}); err == nil {
		t.Fatalf("expected error for zero expiry")
	}
}

func TestVerifyToken_RejectsWrongSecret(t *testing.T) {
	token, err := CreateToken(RealtimeScope, testConfig())
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	bad := testConfig()
	bad.Secret = "other"
	if _, err := VerifyToken(token, bad); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyToken_RejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.Expiry = time.Millisecond
	token, err := CreateToken(RealtimeScope, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := VerifyToken(token, cfg); err == nil {
		t.Fatalf("expected expired token rejection")
	}
}

func TestVerifyToken_RejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()
	cfg.Issuer = "someone-else"
	token, err := CreateToken(RealtimeScope, cfg)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := VerifyToken(token, testConfig()); err == nil {
		t.Fatalf("expected issuer mismatch rejection")
	}
}
