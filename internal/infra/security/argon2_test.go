package security

import (
	"strings"
	"testing"
)

func newTestHasher(t *testing.T) *Argon2Hasher {
	t.Helper()

	// Minimal parameters keep the test fast while staying valid.
	hasher, err := NewArgon2Hasher(Argon2Params{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	return hasher
}

func TestHashAndVerify(t *testing.T) {
	hasher := newTestHasher(t)

	encoded, err := hasher.Hash("S3cret-value!")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if !strings.HasPrefix(encoded, "argon2id$v=19$") {
		t.Fatalf("unexpected encoding prefix: %s", encoded)
	}

	ok, err := hasher.Verify("S3cret-value!", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching secret to verify")
	}

	ok, err = hasher.Verify("different", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatched secret to fail")
	}
}

func TestHashProducesUniqueSalts(t *testing.T) {
	hasher := newTestHasher(t)

	first, err := hasher.Hash("same-secret")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("same-secret")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct encodings for identical secrets")
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	hasher := newTestHasher(t)

	if ok, err := hasher.Verify("", "whatever"); err != nil || ok {
		t.Fatalf("empty secret must fail without error, got ok=%v err=%v", ok, err)
	}
	if ok, err := hasher.Verify("secret", ""); err != nil || ok {
		t.Fatalf("empty hash must fail without error, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	hasher := newTestHasher(t)

	if _, err := hasher.Verify("secret", "not-an-encoded-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
	if _, err := hasher.Verify("secret", "bcrypt$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"); err == nil {
		t.Fatalf("expected error for unexpected variant")
	}
}

func TestNewArgon2HasherRejectsWeakParams(t *testing.T) {
	if _, err := NewArgon2Hasher(Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}); err == nil {
		t.Fatalf("expected error for low memory")
	}
	if _, err := NewArgon2Hasher(Argon2Params{Memory: 8192, Iterations: 0, Parallelism: 1, SaltLength: 8, KeyLength: 16}); err == nil {
		t.Fatalf("expected error for zero iterations")
	}
}
