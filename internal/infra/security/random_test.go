package security

import (
	"testing"
	"unicode"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode returned error: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %d", len(code))
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			t.Fatalf("expected only digits, got %q", code)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Fatalf("expected error for non-positive length")
	}
}

func TestGenerateTempPasswordCoversAllClasses(t *testing.T) {
	for i := 0; i < 20; i++ {
		password, err := GenerateTempPassword(12)
		if err != nil {
			t.Fatalf("GenerateTempPassword returned error: %v", err)
		}
		if len(password) != 12 {
			t.Fatalf("expected 12 characters, got %d", len(password))
		}

		var hasUpper, hasLower, hasDigit, hasSpecial bool
		for _, r := range password {
			switch {
			case unicode.IsUpper(r):
				hasUpper = true
			case unicode.IsLower(r):
				hasLower = true
			case unicode.IsDigit(r):
				hasDigit = true
			default:
				hasSpecial = true
			}
		}
		if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
			t.Fatalf("expected all character classes in %q", password)
		}
	}
}

func TestGenerateTempPasswordSatisfiesStrictPolicy(t *testing.T) {
	policy := domain.SecurityPolicy{
		MinLength:          12,
		RequireUpperLower:  true,
		RequireDigit:       true,
		RequireSpecial:     true,
		ForbidPersonalData: true,
	}
	validator := PolicyValidator(policy, domain.PersonalData{FirstName: "Alice", LastName: "Moreno"})

	for i := 0; i < 20; i++ {
		password, err := GenerateTempPassword(12)
		if err != nil {
			t.Fatalf("GenerateTempPassword returned error: %v", err)
		}
		if err := validator.Validate(password); err != nil {
			t.Fatalf("generated password %q violates policy: %v", password, err)
		}
	}
}

func TestGenerateTempPasswordRejectsShortLength(t *testing.T) {
	if _, err := GenerateTempPassword(3); err == nil {
		t.Fatalf("expected error for length below 4")
	}
}
