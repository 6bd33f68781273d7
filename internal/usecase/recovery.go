package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/infra/logger"
	"github.com/arklim/storefront-account-security/internal/infra/security"
	"github.com/arklim/storefront-account-security/internal/repository"
)

const (
	defaultTempPasswordLength = 12

	// tempPasswordRetryLimit caps the generate-then-validate loop. The
	// generator guarantees the character-class rules, so retries only happen
	// under unusual policies (very long minimum length, aggressive strength
	// score) and exhaustion is an internal error, not a user-facing one.
	tempPasswordRetryLimit = 10

	recoveryActor = "recovery"
)

var (
	// ErrAnswersIncorrect indicates at least one recovery answer failed.
	// Deliberately generic; it never identifies the failing question.
	ErrAnswersIncorrect = errors.New("security answers incorrect")
	// ErrRecoveryUnavailable indicates the account has no registered security questions.
	ErrRecoveryUnavailable = errors.New("recovery unavailable")
	// ErrNotEnoughAnswers indicates a registration attempt below the policy minimum.
	ErrNotEnoughAnswers = errors.New("not enough security answers")
)

// SecurityAnswerInput pairs a question with its plaintext answer.
type SecurityAnswerInput struct {
	Question string
	Answer   string
}

// RecoveryResult carries the one-time plaintext temporary password.
type RecoveryResult struct {
	AccountID    string
	TempPassword string
	ChangedAt    time.Time
}

// RecoveryService handles security-question password recovery and the
// registration of answer sets.
type RecoveryService struct {
	accounts  port.AccountRepository
	policies  port.PolicyRepository
	hasher    port.PasswordHasher
	passwords *PasswordService
	log       *zap.Logger

	now          func() time.Time
	generateTemp func(int) (string, error)
	tempLength   int
}

// NewRecoveryService constructs a RecoveryService instance.
func NewRecoveryService(
	accounts port.AccountRepository,
	policies port.PolicyRepository,
	hasher port.PasswordHasher,
	passwords *PasswordService,
	log *zap.Logger,
) *RecoveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecoveryService{
		accounts:     accounts,
		policies:     policies,
		hasher:       hasher,
		passwords:    passwords,
		log:          log,
		now:          time.Now,
		generateTemp: security.GenerateTempPassword,
		tempLength:   defaultTempPasswordLength,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *RecoveryService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithTempPasswordGenerator overrides the temporary password generator, used in tests.
func (s *RecoveryService) WithTempPasswordGenerator(gen func(int) (string, error)) {
	if gen != nil {
		s.generateTemp = gen
	}
}

// WithTempPasswordLength overrides the generated temporary password length.
// The policy minimum length still wins when it is longer.
func (s *RecoveryService) WithTempPasswordLength(length int) {
	if length > 0 {
		s.tempLength = length
	}
}

// SecurityQuestions returns the registered questions for an account so the
// caller can render the recovery form.
func (s *RecoveryService) SecurityQuestions(ctx context.Context, username string) ([]string, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecoveryUnavailable
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if len(account.SecurityAnswers) == 0 {
		return nil, ErrRecoveryUnavailable
	}

	questions := make([]string, 0, len(account.SecurityAnswers))
	for _, answer := range account.SecurityAnswers {
		questions = append(questions, answer.Question)
	}
	return questions, nil
}

// RecoverPassword verifies every registered answer and, only when all match,
// replaces the credential with a generated temporary password. The plaintext
// is returned exactly once and the account is flagged to force a change at
// the next login.
func (s *RecoveryService) RecoverPassword(ctx context.Context, username string, answers []SecurityAnswerInput) (*RecoveryResult, error) {
	if username == "" {
		return nil, ErrAnswersIncorrect
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAnswersIncorrect
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if len(account.SecurityAnswers) == 0 {
		return nil, ErrRecoveryUnavailable
	}

	if err := s.verifyAnswers(account, answers); err != nil {
		return nil, err
	}

	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return nil, err
	}

	person := domain.PersonalData{
		Username:  account.Username,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		BirthDate: account.BirthDate,
	}

	tempPassword, err := s.generateCompliant(policy, person)
	if err != nil {
		return nil, err
	}

	newHash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temporary password: %w", err)
	}

	now := s.now().UTC()
	if err := s.passwords.applyNewCredential(ctx, account.ID, newHash, account.PasswordHash, now, policy.HistoryLimit, true); err != nil {
		return nil, err
	}

	s.log.Info("password recovered via security questions",
		zap.String("username", logger.MaskUsername(account.Username)),
	)

	s.passwords.publishChanged(ctx, account.ID, now, recoveryActor, true)

	return &RecoveryResult{
		AccountID:    account.ID,
		TempPassword: tempPassword,
		ChangedAt:    now,
	}, nil
}

// verifyAnswers is all-or-nothing: every registered question must be answered
// and every answer must verify against its stored digest.
func (s *RecoveryService) verifyAnswers(account *domain.Account, answers []SecurityAnswerInput) error {
	if len(answers) != len(account.SecurityAnswers) {
		return ErrAnswersIncorrect
	}

	for _, input := range answers {
		registered, found := account.FindAnswer(input.Question)
		if !found {
			return ErrAnswersIncorrect
		}

		match, err := s.hasher.Verify(normalizeAnswer(input.Answer), registered.AnswerHash)
		if err != nil {
			return fmt.Errorf("verify answer: %w", err)
		}
		if !match {
			return ErrAnswersIncorrect
		}
	}

	return nil
}

// generateCompliant runs the generator against the active policy until the
// candidate validates, with a bounded retry and an explicit failure path.
func (s *RecoveryService) generateCompliant(policy domain.SecurityPolicy, person domain.PersonalData) (string, error) {
	length := s.tempLength
	if policy.MinLength > length {
		length = policy.MinLength
	}

	validator := security.PolicyValidator(policy, person)

	for attempt := 0; attempt < tempPasswordRetryLimit; attempt++ {
		candidate, err := s.generateTemp(length)
		if err != nil {
			return "", fmt.Errorf("generate temporary password: %w", err)
		}
		if validator.Validate(candidate) == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("generate temporary password: no compliant candidate after %d attempts", tempPasswordRetryLimit)
}

// RegisterSecurityAnswers replaces the full answer set for an account. The
// policy dictates how many questions must be registered.
func (s *RecoveryService) RegisterSecurityAnswers(ctx context.Context, username string, answers []SecurityAnswerInput) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}

	policy, err := s.loadPolicy(ctx)
	if err != nil {
		return err
	}

	if len(answers) < policy.RequiredSecurityQuestions {
		return ErrNotEnoughAnswers
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	hashed := make([]domain.SecurityAnswer, 0, len(answers))
	seen := make(map[string]struct{}, len(answers))
	for _, input := range answers {
		question := strings.TrimSpace(input.Question)
		if question == "" || strings.TrimSpace(input.Answer) == "" {
			return fmt.Errorf("question and answer are required")
		}
		key := strings.ToLower(question)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate question: %s", question)
		}
		seen[key] = struct{}{}

		answerHash, err := s.hasher.Hash(normalizeAnswer(input.Answer))
		if err != nil {
			return fmt.Errorf("hash answer: %w", err)
		}
		hashed = append(hashed, domain.SecurityAnswer{Question: question, AnswerHash: answerHash})
	}

	if err := s.accounts.ReplaceSecurityAnswers(ctx, account.ID, hashed); err != nil {
		return fmt.Errorf("replace security answers: %w", err)
	}

	return nil
}

func (s *RecoveryService) loadPolicy(ctx context.Context) (domain.SecurityPolicy, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.DefaultSecurityPolicy(), nil
		}
		return domain.SecurityPolicy{}, fmt.Errorf("load policy: %w", err)
	}
	return *policy, nil
}

// normalizeAnswer canonicalizes answers so comparisons ignore case and
// surrounding whitespace.
func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
