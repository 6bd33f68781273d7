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

const passwordChangeActor = "self"

var (
	// ErrCurrentPasswordInvalid indicates the supplied current password does not match.
	ErrCurrentPasswordInvalid = errors.New("current password invalid")
	// ErrPolicyViolation indicates the candidate password failed a policy rule.
	// The wrapped rule detail stays internal; callers surface a generic message.
	ErrPolicyViolation = errors.New("password violates policy")
	// ErrReusedPassword indicates the candidate matches one of the recent credentials.
	ErrReusedPassword = errors.New("password was used recently")
)

// PasswordChangeResult summarizes the outcome of a password change operation.
type PasswordChangeResult struct {
	AccountID string
	ChangedAt time.Time
}

// PasswordService coordinates authenticated password changes.
type PasswordService struct {
	accounts port.AccountRepository
	policies port.PolicyRepository
	hasher   port.PasswordHasher
	events   port.EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewPasswordService constructs a PasswordService instance.
func NewPasswordService(
	accounts port.AccountRepository,
	policies port.PolicyRepository,
	hasher port.PasswordHasher,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordService{
		accounts: accounts,
		policies: policies,
		hasher:   hasher,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ChangePassword replaces the stored credential after verifying the current
// one, validating the candidate against the active policy, and checking the
// reuse history. On success the superseded digest joins the history (bounded
// FIFO) and MustChangePassword clears.
func (s *PasswordService) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) (*PasswordChangeResult, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if currentPassword == "" || newPassword == "" {
		return nil, fmt.Errorf("current and new passwords are required")
	}

	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify current password: %w", err)
	}
	if !ok {
		return nil, ErrCurrentPasswordInvalid
	}

	person := domain.PersonalData{
		Username:  account.Username,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		BirthDate: account.BirthDate,
	}
	if err := security.PolicyValidator(policy, person).Validate(newPassword); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPolicyViolation, err)
	}

	if policy.PreventReuse {
		reused, err := s.isReused(ctx, account, newPassword, policy.HistoryLimit)
		if err != nil {
			return nil, err
		}
		if reused {
			return nil, ErrReusedPassword
		}
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash new password: %w", err)
	}

	now := s.now().UTC()
	previousHash := account.PasswordHash

	if err := s.applyNewCredential(ctx, account.ID, newHash, previousHash, now, policy.HistoryLimit, false); err != nil {
		return nil, err
	}

	s.log.Info("password changed",
		zap.String("username", logger.MaskUsername(account.Username)),
	)

	s.publishChanged(ctx, account.ID, now, passwordChangeActor, false)

	return &PasswordChangeResult{AccountID: account.ID, ChangedAt: now}, nil
}

// isReused compares the candidate against the active credential and the most
// recent limit history digests.
func (s *PasswordService) isReused(ctx context.Context, account *domain.Account, candidate string, limit int) (bool, error) {
	match, err := s.hasher.Verify(candidate, account.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("check reuse against current: %w", err)
	}
	if match {
		return true, nil
	}

	entries, err := s.accounts.ListHistory(ctx, account.ID, limit)
	if err != nil {
		return false, fmt.Errorf("list password history: %w", err)
	}

	for _, entry := range entries {
		match, err := s.hasher.Verify(candidate, entry.PasswordHash)
		if err != nil {
			return false, fmt.Errorf("check reuse against history: %w", err)
		}
		if match {
			return true, nil
		}
	}

	return false, nil
}

// applyNewCredential performs the read-modify-write that swaps the credential,
// pushes the superseded digest into history, and trims the FIFO. Shared with
// the recovery flow, which sets mustChange.
func (s *PasswordService) applyNewCredential(ctx context.Context, accountID, newHash, previousHash string, now time.Time, historyLimit int, mustChange bool) error {
	for attempt := 0; attempt < saveRetryLimit; attempt++ {
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}

		account.PasswordHash = newHash
		account.MustChangePassword = mustChange
		account.UpdatedAt = now

		err = s.accounts.Save(ctx, *account)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("save credential: %w", err)
		}
		if attempt == saveRetryLimit-1 {
			return fmt.Errorf("save credential: %w", repository.ErrConflict)
		}
	}

	entry := domain.PasswordHistoryEntry{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		PasswordHash: previousHash,
		SetAt:        now,
	}
	if err := s.accounts.AppendHistory(ctx, entry); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}

	if historyLimit > 0 {
		if err := s.accounts.TrimHistory(ctx, accountID, historyLimit); err != nil {
			return fmt.Errorf("trim password history: %w", err)
		}
	}

	return nil
}

func (s *PasswordService) loadPolicy(ctx context.Context) (domain.SecurityPolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultSecurityPolicy(), nil
		}
		return domain.SecurityPolicy{}, fmt.Errorf("load policy: %w", err)
	}
	return *policy, nil
}

func (s *PasswordService) publishChanged(ctx context.Context, accountID string, at time.Time, actor string, recovery bool) {
	if s.events == nil {
		return
	}

	event := domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		AccountID: accountID,
		ChangedAt: at,
		ChangedBy: actor,
		Recovery:  recovery,
	}

	if err := s.events.PublishPasswordChanged(ctx, event); err != nil {
		s.log.Warn("publish password changed event", zap.Error(err))
	}
}
