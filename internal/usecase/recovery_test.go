package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

func accountWithAnswers() domain.Account {
	account := aliceAccount()
	account.SecurityAnswers = []domain.SecurityAnswer{
		{Question: "First pet", AnswerHash: "h:whiskers"},
		{Question: "Birth city", AnswerHash: "h:lisbon"},
		{Question: "Favorite teacher", AnswerHash: "h:ramos"},
	}
	return account
}

func correctAnswers() []SecurityAnswerInput {
	return []SecurityAnswerInput{
		{Question: "First pet", Answer: "Whiskers"},
		{Question: "Birth city", Answer: " Lisbon "},
		{Question: "Favorite teacher", Answer: "ramos"},
	}
}

func newRecoveryFixture(t *testing.T, policy *domain.SecurityPolicy, accounts ...domain.Account) (*RecoveryService, *fakeAccountRepo, *fakeEventPublisher, *testClock) {
	t.Helper()

	clock := newTestClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	repo := newFakeAccountRepo(accounts...)
	events := &fakeEventPublisher{}
	policies := &fakePolicyRepo{policy: policy}

	passwords := NewPasswordService(repo, policies, fakeHasher{}, events, nil)
	passwords.WithClock(clock.Now)

	service := NewRecoveryService(repo, policies, fakeHasher{}, passwords, nil)
	service.WithClock(clock.Now)
	service.WithTempPasswordGenerator(sequenceTemp("Tmp4recovery"))

	return service, repo, events, clock
}

func TestRecoverPassword(t *testing.T) {
	service, repo, events, clock := newRecoveryFixture(t, nil, accountWithAnswers())

	result, err := service.RecoverPassword(context.Background(), "alice", correctAnswers())
	if err != nil {
		t.Fatalf("RecoverPassword returned error: %v", err)
	}
	if result.TempPassword != "Tmp4recovery" {
		t.Fatalf("unexpected temp password %q", result.TempPassword)
	}
	if !result.ChangedAt.Equal(clock.Now().UTC()) {
		t.Fatalf("unexpected change time %v", result.ChangedAt)
	}

	stored, _ := repo.GetByID(context.Background(), "account-alice")
	if stored.PasswordHash != "h:Tmp4recovery" {
		t.Fatalf("credential not replaced, hash=%q", stored.PasswordHash)
	}
	if !stored.MustChangePassword {
		t.Fatalf("recovery must force a password change at next login")
	}

	history := repo.history["account-alice"]
	if len(history) != 1 || history[0].PasswordHash != "h:P@ss1234" {
		t.Fatalf("superseded digest missing from history: %+v", history)
	}

	if len(events.changed) != 1 {
		t.Fatalf("expected one change event, got %d", len(events.changed))
	}
	if !events.changed[0].Recovery || events.changed[0].ChangedBy != "recovery" {
		t.Fatalf("unexpected event attribution: %+v", events.changed[0])
	}
}

func TestRecoverPasswordSingleWrongAnswer(t *testing.T) {
	service, repo, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())

	answers := correctAnswers()
	answers[1].Answer = "porto"

	if _, err := service.RecoverPassword(context.Background(), "alice", answers); !errors.Is(err, ErrAnswersIncorrect) {
		t.Fatalf("expected ErrAnswersIncorrect, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), "account-alice")
	if stored.PasswordHash != "h:P@ss1234" {
		t.Fatalf("credential must not change on a failed recovery")
	}
}

func TestRecoverPasswordIncompleteAnswerSet(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())

	if _, err := service.RecoverPassword(context.Background(), "alice", correctAnswers()[:2]); !errors.Is(err, ErrAnswersIncorrect) {
		t.Fatalf("expected ErrAnswersIncorrect, got %v", err)
	}
}

func TestRecoverPasswordUnknownQuestion(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())

	answers := correctAnswers()
	answers[2].Question = "Mother's maiden name"

	if _, err := service.RecoverPassword(context.Background(), "alice", answers); !errors.Is(err, ErrAnswersIncorrect) {
		t.Fatalf("expected ErrAnswersIncorrect, got %v", err)
	}
}

func TestRecoverPasswordUnknownUser(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())

	if _, err := service.RecoverPassword(context.Background(), "ghost", correctAnswers()); !errors.Is(err, ErrAnswersIncorrect) {
		t.Fatalf("unknown user must read as incorrect answers, got %v", err)
	}
}

func TestRecoverPasswordNoAnswersRegistered(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, aliceAccount())

	if _, err := service.RecoverPassword(context.Background(), "alice", nil); !errors.Is(err, ErrRecoveryUnavailable) {
		t.Fatalf("expected ErrRecoveryUnavailable, got %v", err)
	}
}

func TestRecoverPasswordGeneratorRetriesUntilCompliant(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())
	// The first two candidates violate the policy and are discarded.
	service.WithTempPasswordGenerator(sequenceTemp("short", "nodigitshere", "V4lidCandidate"))

	result, err := service.RecoverPassword(context.Background(), "alice", correctAnswers())
	if err != nil {
		t.Fatalf("RecoverPassword returned error: %v", err)
	}
	if result.TempPassword != "V4lidCandidate" {
		t.Fatalf("expected the compliant candidate, got %q", result.TempPassword)
	}
}

func TestRecoverPasswordGeneratorExhaustion(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())
	service.WithTempPasswordGenerator(func(int) (string, error) {
		return "alwaysbad", nil
	})

	if _, err := service.RecoverPassword(context.Background(), "alice", correctAnswers()); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestRegisterSecurityAnswers(t *testing.T) {
	service, repo, _, _ := newRecoveryFixture(t, nil, aliceAccount())

	err := service.RegisterSecurityAnswers(context.Background(), "alice", []SecurityAnswerInput{
		{Question: "First pet", Answer: " Whiskers "},
		{Question: "Birth city", Answer: "Lisbon"},
		{Question: "Favorite teacher", Answer: "Ramos"},
	})
	if err != nil {
		t.Fatalf("RegisterSecurityAnswers returned error: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), "account-alice")
	if len(stored.SecurityAnswers) != 3 {
		t.Fatalf("expected 3 registered answers, got %d", len(stored.SecurityAnswers))
	}
	if stored.SecurityAnswers[0].AnswerHash != "h:whiskers" {
		t.Fatalf("answers must be normalized before hashing, got %q", stored.SecurityAnswers[0].AnswerHash)
	}
}

func TestRegisterSecurityAnswersTooFew(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, aliceAccount())

	err := service.RegisterSecurityAnswers(context.Background(), "alice", []SecurityAnswerInput{
		{Question: "First pet", Answer: "Whiskers"},
	})
	if !errors.Is(err, ErrNotEnoughAnswers) {
		t.Fatalf("expected ErrNotEnoughAnswers, got %v", err)
	}
}

func TestRegisterSecurityAnswersDuplicateQuestion(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, aliceAccount())

	err := service.RegisterSecurityAnswers(context.Background(), "alice", []SecurityAnswerInput{
		{Question: "First pet", Answer: "Whiskers"},
		{Question: "first pet", Answer: "Bandit"},
		{Question: "Birth city", Answer: "Lisbon"},
	})
	if err == nil {
		t.Fatalf("expected duplicate question error")
	}
}

func TestSecurityQuestions(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, accountWithAnswers())

	questions, err := service.SecurityQuestions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("SecurityQuestions returned error: %v", err)
	}
	if len(questions) != 3 || questions[0] != "First pet" {
		t.Fatalf("unexpected questions %v", questions)
	}
}

func TestSecurityQuestionsUnavailable(t *testing.T) {
	service, _, _, _ := newRecoveryFixture(t, nil, aliceAccount())

	if _, err := service.SecurityQuestions(context.Background(), "alice"); !errors.Is(err, ErrRecoveryUnavailable) {
		t.Fatalf("expected ErrRecoveryUnavailable, got %v", err)
	}

	if _, err := service.SecurityQuestions(context.Background(), "ghost"); !errors.Is(err, ErrRecoveryUnavailable) {
		t.Fatalf("unknown user must also read as unavailable, got %v", err)
	}
}
