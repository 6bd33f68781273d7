package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

func newPasswordFixture(t *testing.T, policy *domain.SecurityPolicy, accounts ...domain.Account) (*PasswordService, *fakeAccountRepo, *fakeEventPublisher, *testClock) {
	t.Helper()

	clock := newTestClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	repo := newFakeAccountRepo(accounts...)
	events := &fakeEventPublisher{}

	service := NewPasswordService(repo, &fakePolicyRepo{policy: policy}, fakeHasher{}, events, nil)
	service.WithClock(clock.Now)

	return service, repo, events, clock
}

func TestChangePassword(t *testing.T) {
	account := aliceAccount()
	account.MustChangePassword = true

	service, repo, events, clock := newPasswordFixture(t, nil, account)

	result, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "Br1ghtLantern")
	if err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}
	if result.AccountID != "account-alice" {
		t.Fatalf("unexpected account id %q", result.AccountID)
	}
	if !result.ChangedAt.Equal(clock.Now().UTC()) {
		t.Fatalf("unexpected change time %v", result.ChangedAt)
	}

	stored, _ := repo.GetByID(context.Background(), "account-alice")
	if stored.PasswordHash != "h:Br1ghtLantern" {
		t.Fatalf("credential not swapped, hash=%q", stored.PasswordHash)
	}
	if stored.MustChangePassword {
		t.Fatalf("expected MustChangePassword cleared")
	}
	if stored.Version != 2 {
		t.Fatalf("expected version bump, got %d", stored.Version)
	}

	history := repo.history["account-alice"]
	if len(history) != 1 || history[0].PasswordHash != "h:P@ss1234" {
		t.Fatalf("superseded digest missing from history: %+v", history)
	}

	if len(events.changed) != 1 {
		t.Fatalf("expected one change event, got %d", len(events.changed))
	}
	if events.changed[0].Recovery {
		t.Fatalf("self-service change must not be flagged as recovery")
	}
	if events.changed[0].ChangedBy != "self" {
		t.Fatalf("unexpected actor %q", events.changed[0].ChangedBy)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	service, repo, _, _ := newPasswordFixture(t, nil, aliceAccount())

	if _, err := service.ChangePassword(context.Background(), "alice", "nope", "Br1ghtLantern"); !errors.Is(err, ErrCurrentPasswordInvalid) {
		t.Fatalf("expected ErrCurrentPasswordInvalid, got %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), "account-alice")
	if stored.PasswordHash != "h:P@ss1234" {
		t.Fatalf("credential must not change on a failed verification")
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	service, _, _, _ := newPasswordFixture(t, nil)

	if _, err := service.ChangePassword(context.Background(), "ghost", "x", "Br1ghtLantern"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestChangePasswordPolicyViolations(t *testing.T) {
	cases := []struct {
		name     string
		password string
	}{
		{"too short", "Sh0rt"},
		{"no digit", "NoDigitsHere"},
		{"no case mix", "alllowercase1"},
		{"contains last name", "XxMoreno99zz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service, _, _, _ := newPasswordFixture(t, nil, aliceAccount())

			_, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", tc.password)
			if !errors.Is(err, ErrPolicyViolation) {
				t.Fatalf("expected ErrPolicyViolation, got %v", err)
			}
		})
	}
}

func TestChangePasswordRejectsCurrentReuse(t *testing.T) {
	service, _, _, _ := newPasswordFixture(t, nil, aliceAccount())

	if _, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "P@ss1234"); !errors.Is(err, ErrReusedPassword) {
		t.Fatalf("expected ErrReusedPassword, got %v", err)
	}
}

func TestChangePasswordRejectsHistoryReuse(t *testing.T) {
	service, repo, _, _ := newPasswordFixture(t, nil, aliceAccount())
	repo.history["account-alice"] = []domain.PasswordHistoryEntry{
		{ID: "h1", AccountID: "account-alice", PasswordHash: "h:OldSpr1ng", SetAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
	}

	if _, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "OldSpr1ng"); !errors.Is(err, ErrReusedPassword) {
		t.Fatalf("expected ErrReusedPassword, got %v", err)
	}
}

func TestChangePasswordHistoryBeyondLimitIsReusable(t *testing.T) {
	policy := domain.DefaultSecurityPolicy()
	policy.HistoryLimit = 1

	service, repo, _, _ := newPasswordFixture(t, &policy, aliceAccount())
	// Newest first; only the first entry is inside the window.
	repo.history["account-alice"] = []domain.PasswordHistoryEntry{
		{ID: "h1", AccountID: "account-alice", PasswordHash: "h:Rec3ntOne", SetAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "h2", AccountID: "account-alice", PasswordHash: "h:Anc1entOne", SetAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	if _, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "Anc1entOne"); err != nil {
		t.Fatalf("digest outside the history window should be reusable, got %v", err)
	}
}

func TestChangePasswordTrimsHistory(t *testing.T) {
	policy := domain.DefaultSecurityPolicy()
	policy.HistoryLimit = 2

	service, repo, _, _ := newPasswordFixture(t, &policy, aliceAccount())
	repo.history["account-alice"] = []domain.PasswordHistoryEntry{
		{ID: "h1", AccountID: "account-alice", PasswordHash: "h:one1AAAA", SetAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "h2", AccountID: "account-alice", PasswordHash: "h:two2BBBB", SetAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	if _, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "Br1ghtLantern"); err != nil {
		t.Fatalf("ChangePassword returned error: %v", err)
	}

	history := repo.history["account-alice"]
	if len(history) != 2 {
		t.Fatalf("expected history trimmed to 2, got %d", len(history))
	}
	if history[0].PasswordHash != "h:P@ss1234" {
		t.Fatalf("expected superseded digest newest in history, got %q", history[0].PasswordHash)
	}
}

func TestChangePasswordReuseDisabled(t *testing.T) {
	policy := domain.DefaultSecurityPolicy()
	policy.PreventReuse = false

	service, _, _, _ := newPasswordFixture(t, &policy, aliceAccount())

	if _, err := service.ChangePassword(context.Background(), "alice", "P@ss1234", "P@ss1234"); err != nil {
		t.Fatalf("reuse check disabled, expected success, got %v", err)
	}
}
