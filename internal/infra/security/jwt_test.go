package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"
)

type staticKeyProvider struct {
	key *rsa.PrivateKey
	kid string
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeyProvider) GetVerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid {
		return nil, ErrKeyNotFound
	}
	return &p.key.PublicKey, nil
}

func newTestIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	issuer, err := NewTokenIssuer(&staticKeyProvider{key: key, kid: "v1"}, "account-security", "v1", ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	return issuer
}

func TestIssueAndParse(t *testing.T) {
	issuer := newTestIssuer(t, 15*time.Minute)

	token, err := issuer.Issue("alice", "employee")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected subject alice, got %s", claims.Subject)
	}
	if claims.Role != "employee" {
		t.Fatalf("expected role employee, got %s", claims.Role)
	}
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		t.Fatalf("expected expiry after issuance")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)

	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.WithClock(func() time.Time { return issued })

	token, err := issuer.Issue("alice", "employee")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	issuer.WithClock(func() time.Time { return issued.Add(2 * time.Minute) })
	if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)

	token, err := issuer.Issue("alice", "employee")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	tampered := token[:len(token)-4] + "aaaa"
	if _, err := issuer.Parse(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	foreign := newTestIssuer(t, time.Minute)

	token, err := foreign.Issue("alice", "employee")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := issuer.Parse(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestParseRejectsEmptyToken(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	if _, err := issuer.Parse("  "); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestJWKSListsSigningKey(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)

	// The static provider does not enumerate keys, so force a lookup to
	// populate the verification cache before rendering.
	token, err := issuer.Issue("alice", "employee")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := issuer.Parse(token); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	payload, err := issuer.JWKS()
	if err != nil {
		t.Fatalf("JWKS returned error: %v", err)
	}
	if string(payload) == `{"keys":[]}` {
		t.Fatalf("expected at least one key in JWKS")
	}
}
