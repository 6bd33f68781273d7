package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

func TestPolicyGetFallsBackToDefaults(t *testing.T) {
	service := NewPolicyService(&fakePolicyRepo{}, nil)

	policy, err := service.Get(context.Background())
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	defaults := domain.DefaultSecurityPolicy()
	if policy.MinLength != defaults.MinLength || policy.MaxFailedAttempts != defaults.MaxFailedAttempts {
		t.Fatalf("expected defaults, got %+v", policy)
	}
}

func TestPolicyEnsureSeedsDefaults(t *testing.T) {
	repo := &fakePolicyRepo{}
	service := NewPolicyService(repo, nil)

	if err := service.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if repo.policy == nil {
		t.Fatalf("expected seeded policy row")
	}
	if repo.policy.LockoutDuration != 5*time.Minute {
		t.Fatalf("unexpected seeded lockout %v", repo.policy.LockoutDuration)
	}
}

func TestPolicyEnsureKeepsExistingRow(t *testing.T) {
	existing := domain.DefaultSecurityPolicy()
	existing.MinLength = 14
	repo := &fakePolicyRepo{policy: &existing}
	service := NewPolicyService(repo, nil)

	if err := service.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure returned error: %v", err)
	}
	if repo.policy.MinLength != 14 {
		t.Fatalf("Ensure must not overwrite an existing row, got %d", repo.policy.MinLength)
	}
}

func TestPolicyUpdate(t *testing.T) {
	clock := newTestClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	repo := &fakePolicyRepo{}
	service := NewPolicyService(repo, nil)
	service.WithClock(clock.Now)

	candidate := domain.DefaultSecurityPolicy()
	candidate.MinLength = 12
	candidate.Require2FA = true

	updated, err := service.Update(context.Background(), candidate)
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.MinLength != 12 || !updated.Require2FA {
		t.Fatalf("unexpected stored policy %+v", updated)
	}
	if !updated.UpdatedAt.Equal(clock.Now().UTC()) {
		t.Fatalf("expected update timestamp stamped, got %v", updated.UpdatedAt)
	}
}

func TestPolicyUpdateRejectsInvalid(t *testing.T) {
	service := NewPolicyService(&fakePolicyRepo{}, nil)

	cases := []struct {
		name   string
		mutate func(*domain.SecurityPolicy)
	}{
		{"zero min length", func(p *domain.SecurityPolicy) { p.MinLength = 0 }},
		{"zero max attempts", func(p *domain.SecurityPolicy) { p.MaxFailedAttempts = 0 }},
		{"non-positive lockout", func(p *domain.SecurityPolicy) { p.LockoutDuration = 0 }},
		{"negative history limit", func(p *domain.SecurityPolicy) { p.HistoryLimit = -1 }},
		{"negative question count", func(p *domain.SecurityPolicy) { p.RequiredSecurityQuestions = -1 }},
		{"strength score out of range", func(p *domain.SecurityPolicy) { p.MinStrengthScore = 5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidate := domain.DefaultSecurityPolicy()
			tc.mutate(&candidate)

			if _, err := service.Update(context.Background(), candidate); !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}
