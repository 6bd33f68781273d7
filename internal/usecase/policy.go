package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/repository"
)

// ErrInvalidPolicy indicates an update carried out-of-range values.
var ErrInvalidPolicy = errors.New("invalid policy")

// PolicyService exposes the administrator surface for the singleton security policy.
type PolicyService struct {
	policies port.PolicyRepository
	log      *zap.Logger
	now      func() time.Time
}

// NewPolicyService constructs a PolicyService instance.
func NewPolicyService(policies port.PolicyRepository, log *zap.Logger) *PolicyService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PolicyService{
		policies: policies,
		log:      log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PolicyService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Get returns the active policy, falling back to defaults when no row was
// seeded yet.
func (s *PolicyService) Get(ctx context.Context) (*domain.SecurityPolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			defaults := domain.DefaultSecurityPolicy()
			return &defaults, nil
		}
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return policy, nil
}

// Ensure seeds the stored policy with defaults when missing. Called once at
// startup so later reads and updates work against a real row.
func (s *PolicyService) Ensure(ctx context.Context) error {
	_, err := s.policies.Get(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load policy: %w", err)
	}

	defaults := domain.DefaultSecurityPolicy()
	defaults.UpdatedAt = s.now().UTC()

	if _, err := s.policies.Update(ctx, defaults); err != nil {
		return fmt.Errorf("seed default policy: %w", err)
	}

	s.log.Info("seeded default security policy")
	return nil
}

// Update validates and stores a replacement policy. The policy is replaced
// whole; there is no partial patch surface.
func (s *PolicyService) Update(ctx context.Context, policy domain.SecurityPolicy) (*domain.SecurityPolicy, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	policy.UpdatedAt = s.now().UTC()

	stored, err := s.policies.Update(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("store policy: %w", err)
	}

	s.log.Info("security policy updated",
		zap.Int("min_length", stored.MinLength),
		zap.Int("max_failed_attempts", stored.MaxFailedAttempts),
		zap.Duration("lockout_duration", stored.LockoutDuration),
		zap.Bool("require_2fa", stored.Require2FA),
	)

	return stored, nil
}

func validatePolicy(policy domain.SecurityPolicy) error {
	switch {
	case policy.MinLength < 1:
		return fmt.Errorf("%w: min length must be at least 1", ErrInvalidPolicy)
	case policy.MaxFailedAttempts < 1:
		return fmt.Errorf("%w: max failed attempts must be at least 1", ErrInvalidPolicy)
	case policy.LockoutDuration <= 0:
		return fmt.Errorf("%w: lockout duration must be positive", ErrInvalidPolicy)
	case policy.HistoryLimit < 0:
		return fmt.Errorf("%w: history limit must not be negative", ErrInvalidPolicy)
	case policy.RequiredSecurityQuestions < 0:
		return fmt.Errorf("%w: required security questions must not be negative", ErrInvalidPolicy)
	case policy.MinStrengthScore < 0 || policy.MinStrengthScore > 4:
		return fmt.Errorf("%w: strength score must be between 0 and 4", ErrInvalidPolicy)
	}
	return nil
}
