package auth

import (
	"strings"
	"testing"
	"time"
)

func testIdentity() Identity {
	return Identity{
		UserID:   "9f4a2c1e-0000-4000-8000-000000000001",
		Username: "maria.perez",
		Role:     "USER",
		Name:     "Maria Perez",
		Email:    "maria@example.com",
		Phone:    "5550001111",
	}
}

func newTestManager() *Manager {
	return NewManager("test-secret", "clinicbook", "clinicbook-web", 2*time.Hour, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestManager()
	id := testIdentity()

	raw, err := m.GenerateAccessToken(id)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	if claims.UserID != id.UserID {
		t.Fatalf("sub mismatch: got %q want %q", claims.UserID, id.UserID)
	}
	if claims.Role != id.Role || claims.Username != id.Username {
		t.Fatalf("identity mismatch: %+v", claims)
	}
	if claims.Name != id.Name || claims.Email != id.Email || claims.Phone != id.Phone {
		t.Fatalf("profile claims mismatch: %+v", claims)
	}
	if claims.TokenType != "access" {
		t.Fatalf("got token type %q", claims.TokenType)
	}
	if claims.JTI == "" {
		t.Fatalf("expected a jti")
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	m := NewManager("test-secret", "clinicbook", "clinicbook-web", -time.Minute, time.Hour)

	raw, err := m.GenerateAccessToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	m := newTestManager()

	raw, err := m.GenerateAccessToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// flip a character in the signature
	tampered := raw[:len(raw)-2] + "xx"

	if _, err := m.VerifyAccessToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	m := newTestManager()
	other := NewManager("other-secret", "clinicbook", "clinicbook-web", 2*time.Hour, time.Hour)

	raw, err := m.GenerateAccessToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := other.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestIssuerAndAudienceValidated(t *testing.T) {
	m := newTestManager()

	wrongIssuer := NewManager("test-secret", "someone-else", "clinicbook-web", 2*time.Hour, time.Hour)
	wrongAudience := NewManager("test-secret", "clinicbook", "other-app", 2*time.Hour, time.Hour)

	raw, err := m.GenerateAccessToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := wrongIssuer.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected issuer mismatch to be rejected")
	}

	if _, err := wrongAudience.VerifyAccessToken(raw); err == nil {
		t.Fatalf("expected audience mismatch to be rejected")
	}
}

func TestTokenTypeEnforced(t *testing.T) {
	m := newTestManager()

	raw, _, _, err := m.GenerateSessionToken(testIdentity())
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}

	if _, err := m.VerifyAccessToken(raw); err == nil {
		t.Fatalf("session token must not pass access verification")
	}

	access, err := m.GenerateAccessToken(testIdentity())
	if err != nil {
		t.Fatalf("generate access: %v", err)
	}

	if _, err := m.VerifySessionToken(access); err == nil {
		t.Fatalf("access token must not pass session verification")
	}
}

func TestHashSessionTokenDeterministic(t *testing.T) {
	m := newTestManager()

	h1 := m.HashSessionToken("raw-token")
	h2 := m.HashSessionToken("raw-token")
	h3 := m.HashSessionToken("different")

	if h1 != h2 {
		t.Fatalf("hash must be deterministic")
	}
	if h1 == h3 {
		t.Fatalf("different inputs must not collide")
	}
	if strings.Contains(h1, "raw-token") {
		t.Fatalf("hash leaks the raw token")
	}
}
