package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/infra/logger"
	"github.com/arklim/storefront-account-security/internal/infra/security"
	"github.com/arklim/storefront-account-security/internal/repository"
)

// ErrUsernameTaken indicates a provisioning collision on the username.
var ErrUsernameTaken = errors.New("username already taken")

// ProvisionRequest is the normalized creation payload. Callers build it via
// the variant constructors below rather than populating it directly, so the
// differences between intake formats stay at the call site.
type ProvisionRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	BirthDate *time.Time
	Role      domain.AccountRole
	ExpiresAt *time.Time

	// source tags which intake variant built the request, for audit events.
	source string
}

// ProvisionLegacy builds a request from the legacy intake format: bare
// username/password plus a display name, no birth date or expiry. Legacy
// accounts must rotate their password at first login.
func ProvisionLegacy(username, password, firstName, lastName string) ProvisionRequest {
	return ProvisionRequest{
		Username:  username,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		Role:      domain.RoleEmployee,
		source:    "legacy",
	}
}

// ProvisionStandard builds a request from the full intake format, carrying
// personal data for the policy validator, an explicit role, and an optional
// account expiry.
func ProvisionStandard(username, password, firstName, lastName string, birthDate *time.Time, role domain.AccountRole, expiresAt *time.Time) ProvisionRequest {
	return ProvisionRequest{
		Username:  username,
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
		BirthDate: birthDate,
		Role:      role,
		ExpiresAt: expiresAt,
		source:    "standard",
	}
}

// ProvisionService creates accounts from normalized requests.
type ProvisionService struct {
	accounts port.AccountRepository
	policies port.PolicyRepository
	hasher   port.PasswordHasher
	events   port.EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewProvisionService constructs a ProvisionService instance.
func NewProvisionService(
	accounts port.AccountRepository,
	policies port.PolicyRepository,
	hasher port.PasswordHasher,
	events port.EventPublisher,
	log *zap.Logger,
) *ProvisionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProvisionService{
		accounts: accounts,
		policies: policies,
		hasher:   hasher,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *ProvisionService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Provision validates the initial password against the active policy, hashes
// it, and creates the account. Legacy-sourced accounts start with
// MustChangePassword set.
func (s *ProvisionService) Provision(ctx context.Context, req ProvisionRequest) (*domain.Account, error) {
	username := domain.NormalizeUsername(req.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if req.Password == "" {
		return nil, fmt.Errorf("password is required")
	}

	role := req.Role
	if role == "" {
		role = domain.RoleEmployee
	}

	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return nil, err
	}

	person := domain.PersonalData{
		Username:  username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: req.BirthDate,
	}
	if err := security.PolicyValidator(policy, person).Validate(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyViolation, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:                 uuid.NewString(),
		Username:           username,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		BirthDate:          req.BirthDate,
		PasswordHash:       hash,
		PasswordAlgo:       "argon2id",
		Role:               role,
		MustChangePassword: req.source == "legacy",
		ExpiresAt:          req.ExpiresAt,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	s.log.Info("account provisioned",
		zap.String("username", logger.MaskUsername(account.Username)),
		zap.String("role", string(account.Role)),
		zap.String("source", req.source),
	)

	if s.events != nil {
		event := domain.AccountProvisionedEvent{
			EventID:       uuid.NewString(),
			AccountID:     account.ID,
			Username:      account.Username,
			Role:          string(account.Role),
			ProvisionedAt: now,
			Source:        req.source,
		}
		if err := s.events.PublishAccountProvisioned(ctx, event); err != nil {
			s.log.Warn("publish account provisioned event", zap.Error(err))
		}
	}

	account.PasswordHash = ""
	return &account, nil
}

func (s *ProvisionService) loadPolicy(ctx context.Context) (domain.SecurityPolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultSecurityPolicy(), nil
		}
		return domain.SecurityPolicy{}, fmt.Errorf("load policy: %w", err)
	}
	return *policy, nil
}
