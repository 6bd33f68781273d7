package usecase

import (
	"context"
	"crypto/subtle"
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

const (
	// saveRetryLimit bounds re-reads when a concurrent writer bumps the
	// account version between our read and our Save.
	saveRetryLimit = 3

	defaultChallengeCodeLength = 6
	defaultChallengeTTL        = 5 * time.Minute
	defaultChallengeAttempts   = 5
)

var (
	// ErrInvalidCredentials indicates the username or password is incorrect.
	// Unknown usernames surface the same error as wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountExpired indicates the account passed its expiry date.
	ErrAccountExpired = errors.New("account expired")
	// ErrInvalidChallenge indicates the two-factor code was never issued,
	// does not match, or its validity window has closed.
	ErrInvalidChallenge = errors.New("invalid or expired two-factor code")
)

// AccountLockedError rejects an attempt made inside an active lockout window.
type AccountLockedError struct {
	Remaining time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked for another %s", e.Remaining.Round(time.Second))
}

// LoginStatus discriminates the successful outcomes of Login.
type LoginStatus string

const (
	// LoginSucceeded means credentials passed and a token was issued.
	LoginSucceeded LoginStatus = "succeeded"
	// LoginRequires2FA means credentials passed and a challenge was issued;
	// the caller must follow up with Validate2FA.
	LoginRequires2FA LoginStatus = "requires_2fa"
)

// LoginResult is the outcome of a successful credential check.
type LoginResult struct {
	Status             LoginStatus
	Token              string
	MustChangePassword bool
	ChallengeExpiresAt time.Time
}

// AuthService orchestrates login, lockout bookkeeping, and two-factor verification.
type AuthService struct {
	accounts   port.AccountRepository
	policies   port.PolicyRepository
	challenges port.ChallengeStore
	hasher     port.PasswordHasher
	issuer     *security.TokenIssuer
	events     port.EventPublisher
	log        *zap.Logger

	now          func() time.Time
	generateCode func(int) (string, error)

	codeLength   int
	challengeTTL time.Duration
	codeAttempts int
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	accounts port.AccountRepository,
	policies port.PolicyRepository,
	challenges port.ChallengeStore,
	hasher port.PasswordHasher,
	issuer *security.TokenIssuer,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		accounts:     accounts,
		policies:     policies,
		challenges:   challenges,
		hasher:       hasher,
		issuer:       issuer,
		events:       events,
		log:          log,
		now:          time.Now,
		generateCode: security.GenerateNumericCode,
		codeLength:   defaultChallengeCodeLength,
		challengeTTL: defaultChallengeTTL,
		codeAttempts: defaultChallengeAttempts,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithCodeGenerator overrides the challenge code generator, used in tests.
func (s *AuthService) WithCodeGenerator(gen func(int) (string, error)) {
	if gen != nil {
		s.generateCode = gen
	}
}

// WithChallengeWindow tunes the two-factor code length, validity window, and
// verification attempt cap.
func (s *AuthService) WithChallengeWindow(codeLength int, ttl time.Duration, attempts int) {
	if codeLength > 0 {
		s.codeLength = codeLength
	}
	if ttl > 0 {
		s.challengeTTL = ttl
	}
	if attempts > 0 {
		s.codeAttempts = attempts
	}
}

// Login validates a username/password pair against the stored credential and
// the lockout state machine. Inside an active lockout window the password is
// never consulted. When the policy demands a second factor the result carries
// LoginRequires2FA and a challenge is issued instead of a token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.publishAttempt(ctx, nil, username, now, false, false)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account.Expired(now) {
		return nil, ErrAccountExpired
	}

	if account.Locked(now) {
		s.publishAttempt(ctx, account, username, now, false, true)
		return nil, &AccountLockedError{Remaining: account.LockRemaining(now)}
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !ok {
		locked, lockErr := s.recordFailure(ctx, account.ID, now, policy)
		if lockErr != nil {
			return nil, lockErr
		}
		s.publishAttempt(ctx, account, username, now, false, locked)
		if locked {
			s.publishLocked(ctx, account, now, policy.LockoutDuration)
		}
		// The attempt that trips the lockout still reads as a bad credential;
		// only subsequent attempts see the lock.
		return nil, ErrInvalidCredentials
	}

	// The credential checked out; clear any failure streak before branching
	// into the second factor.
	if account.FailedAttempts > 0 || account.LockedUntil != nil {
		if err := s.recordSuccess(ctx, account.ID, now); err != nil {
			return nil, err
		}
	}

	s.publishAttempt(ctx, account, username, now, true, false)

	if policy.Require2FA {
		return s.issueChallenge(ctx, account, now)
	}

	token, err := s.issuer.Issue(account.Username, string(account.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		Status:             LoginSucceeded,
		Token:              token,
		MustChangePassword: account.MustChangePassword,
	}, nil
}

// Validate2FA consumes an outstanding challenge. Failures never touch the
// password lockout counter; the challenge carries its own attempt cap.
func (s *AuthService) Validate2FA(ctx context.Context, username, code string) (*LoginResult, error) {
	if username == "" || code == "" {
		return nil, ErrInvalidChallenge
	}

	challenge, err := s.challenges.Fetch(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidChallenge
		}
		return nil, fmt.Errorf("fetch challenge: %w", err)
	}

	now := s.now().UTC()
	if challenge.Expired(now) {
		_ = s.challenges.Delete(ctx, username)
		return nil, ErrInvalidChallenge
	}

	if subtle.ConstantTimeCompare([]byte(challenge.Code), []byte(code)) != 1 {
		attempts, incErr := s.challenges.IncrementAttempts(ctx, username)
		if incErr == nil && attempts >= s.codeAttempts {
			_ = s.challenges.Delete(ctx, username)
		}
		return nil, ErrInvalidChallenge
	}

	if err := s.challenges.Delete(ctx, username); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("consume challenge: %w", err)
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidChallenge
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account.Expired(now) {
		return nil, ErrAccountExpired
	}

	token, err := s.issuer.Issue(account.Username, string(account.Role))
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{
		Status:             LoginSucceeded,
		Token:              token,
		MustChangePassword: account.MustChangePassword,
	}, nil
}

func (s *AuthService) issueChallenge(ctx context.Context, account *domain.Account, now time.Time) (*LoginResult, error) {
	code, err := s.generateCode(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate challenge code: %w", err)
	}

	challenge, err := s.challenges.Store(ctx, account.Username, code, s.challengeTTL)
	if err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}

	s.log.Info("two-factor challenge issued",
		zap.String("username", logger.MaskUsername(account.Username)),
		zap.Time("expires_at", challenge.ExpiresAt),
	)

	if s.events != nil {
		event := domain.TwoFactorChallengedEvent{
			EventID:      uuid.NewString(),
			AccountID:    account.ID,
			Username:     account.Username,
			ChallengedAt: challenge.IssuedAt,
			ExpiresAt:    challenge.ExpiresAt,
		}
		if err := s.events.PublishTwoFactorChallenged(ctx, event); err != nil {
			s.log.Warn("publish two-factor challenge event", zap.Error(err))
		}
	}

	return &LoginResult{
		Status:             LoginRequires2FA,
		MustChangePassword: account.MustChangePassword,
		ChallengeExpiresAt: challenge.ExpiresAt,
	}, nil
}

// recordFailure applies RegisterFailure under the optimistic version check,
// retrying the read-modify-write when another attempt raced ours. Returns
// whether the lockout fired.
func (s *AuthService) recordFailure(ctx context.Context, accountID string, now time.Time, policy domain.SecurityPolicy) (bool, error) {
	for attempt := 0; attempt < saveRetryLimit; attempt++ {
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return false, fmt.Errorf("reload account: %w", err)
		}

		if account.Locked(now) {
			// A concurrent attempt fired the lockout first.
			return false, &AccountLockedError{Remaining: account.LockRemaining(now)}
		}

		fired := account.RegisterFailure(now, policy.MaxFailedAttempts, policy.LockoutDuration)
		account.UpdatedAt = now

		err = s.accounts.Save(ctx, *account)
		if err == nil {
			return fired, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return false, fmt.Errorf("save failure count: %w", err)
		}
	}

	return false, fmt.Errorf("save failure count: %w", repository.ErrConflict)
}

func (s *AuthService) recordSuccess(ctx context.Context, accountID string, now time.Time) error {
	for attempt := 0; attempt < saveRetryLimit; attempt++ {
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("reload account: %w", err)
		}

		account.RegisterSuccess()
		account.UpdatedAt = now

		err = s.accounts.Save(ctx, *account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("reset failure count: %w", err)
		}
	}

	return fmt.Errorf("reset failure count: %w", repository.ErrConflict)
}

func (s *AuthService) loadPolicy(ctx context.Context) (domain.SecurityPolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultSecurityPolicy(), nil
		}
		return domain.SecurityPolicy{}, fmt.Errorf("load policy: %w", err)
	}
	return *policy, nil
}

func (s *AuthService) publishAttempt(ctx context.Context, account *domain.Account, username string, at time.Time, succeeded, locked bool) {
	if s.events == nil {
		return
	}

	event := domain.LoginAttemptEvent{
		EventID:     uuid.NewString(),
		Username:    domain.NormalizeUsername(username),
		Succeeded:   succeeded,
		Locked:      locked,
		AttemptedAt: at,
	}
	if account != nil {
		event.AccountID = account.ID
	}

	if err := s.events.PublishLoginAttempt(ctx, event); err != nil {
		s.log.Warn("publish login attempt event", zap.Error(err))
	}
}

func (s *AuthService) publishLocked(ctx context.Context, account *domain.Account, at time.Time, lockout time.Duration) {
	if s.events == nil {
		return
	}

	event := domain.AccountLockedEvent{
		EventID:     uuid.NewString(),
		AccountID:   account.ID,
		Username:    account.Username,
		LockedAt:    at,
		LockedUntil: at.Add(lockout),
	}

	if err := s.events.PublishAccountLocked(ctx, event); err != nil {
		s.log.Warn("publish account locked event", zap.Error(err))
	}
}
