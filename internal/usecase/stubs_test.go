package usecase

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"testing"
	"time"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/infra/security"
	"github.com/arklim/storefront-account-security/internal/repository"
)

// fakeAccountRepo is an in-memory port.AccountRepository with the same
// optimistic version semantics as the PostgreSQL implementation.
type fakeAccountRepo struct {
	accounts map[string]*domain.Account
	history  map[string][]domain.PasswordHistoryEntry

	// conflicts causes the next n Save calls to fail with ErrConflict.
	conflicts int
	saveCalls int
}

func newFakeAccountRepo(accounts ...domain.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{
		accounts: make(map[string]*domain.Account),
		history:  make(map[string][]domain.PasswordHistoryEntry),
	}
	for _, account := range accounts {
		copy := account
		repo.accounts[account.ID] = &copy
	}
	return repo
}

func (r *fakeAccountRepo) Create(_ context.Context, account domain.Account) error {
	for _, existing := range r.accounts {
		if existing.Username == account.Username {
			return repository.ErrDuplicate
		}
	}
	copy := account
	r.accounts[account.ID] = &copy
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *account
	return &copy, nil
}

func (r *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*domain.Account, error) {
	normalized := domain.NormalizeUsername(username)
	for _, account := range r.accounts {
		if account.Username == normalized {
			copy := *account
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAccountRepo) Save(_ context.Context, account domain.Account) error {
	r.saveCalls++
	if r.conflicts > 0 {
		r.conflicts--
		return repository.ErrConflict
	}

	stored, ok := r.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != account.Version {
		return repository.ErrConflict
	}

	account.Version++
	copy := account
	r.accounts[account.ID] = &copy
	return nil
}

func (r *fakeAccountRepo) AppendHistory(_ context.Context, entry domain.PasswordHistoryEntry) error {
	r.history[entry.AccountID] = append([]domain.PasswordHistoryEntry{entry}, r.history[entry.AccountID]...)
	return nil
}

func (r *fakeAccountRepo) ListHistory(_ context.Context, accountID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	entries := r.history[accountID]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]domain.PasswordHistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (r *fakeAccountRepo) TrimHistory(_ context.Context, accountID string, keep int) error {
	entries := r.history[accountID]
	if keep >= 0 && len(entries) > keep {
		r.history[accountID] = entries[:keep]
	}
	return nil
}

func (r *fakeAccountRepo) ReplaceSecurityAnswers(_ context.Context, accountID string, answers []domain.SecurityAnswer) error {
	account, ok := r.accounts[accountID]
	if !ok {
		return repository.ErrNotFound
	}
	account.SecurityAnswers = append([]domain.SecurityAnswer(nil), answers...)
	return nil
}

type fakePolicyRepo struct {
	policy *domain.SecurityPolicy
}

func (r *fakePolicyRepo) Get(context.Context) (*domain.SecurityPolicy, error) {
	if r.policy == nil {
		return nil, repository.ErrNotFound
	}
	copy := *r.policy
	return &copy, nil
}

func (r *fakePolicyRepo) Update(_ context.Context, policy domain.SecurityPolicy) (*domain.SecurityPolicy, error) {
	copy := policy
	r.policy = &copy
	return &copy, nil
}

// fakeChallengeStore mirrors the Redis challenge repository semantics without
// TTL eviction; expiry is enforced by the service clock.
type fakeChallengeStore struct {
	challenges map[string]*domain.TwoFactorChallenge
	now        func() time.Time
}

func newFakeChallengeStore(clock func() time.Time) *fakeChallengeStore {
	if clock == nil {
		clock = time.Now
	}
	return &fakeChallengeStore{
		challenges: make(map[string]*domain.TwoFactorChallenge),
		now:        clock,
	}
}

func (s *fakeChallengeStore) Store(_ context.Context, username, code string, ttl time.Duration) (*domain.TwoFactorChallenge, error) {
	now := s.now().UTC()
	challenge := &domain.TwoFactorChallenge{
		Username:  domain.NormalizeUsername(username),
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	s.challenges[challenge.Username] = challenge
	return challenge, nil
}

func (s *fakeChallengeStore) Fetch(_ context.Context, username string) (*domain.TwoFactorChallenge, error) {
	challenge, ok := s.challenges[domain.NormalizeUsername(username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *challenge
	return &copy, nil
}

func (s *fakeChallengeStore) IncrementAttempts(_ context.Context, username string) (int, error) {
	challenge, ok := s.challenges[domain.NormalizeUsername(username)]
	if !ok {
		return 0, repository.ErrNotFound
	}
	challenge.Attempts++
	return challenge.Attempts, nil
}

func (s *fakeChallengeStore) Delete(_ context.Context, username string) error {
	key := domain.NormalizeUsername(username)
	if _, ok := s.challenges[key]; !ok {
		return repository.ErrNotFound
	}
	delete(s.challenges, key)
	return nil
}

// fakeHasher trades argon2 cost for determinism in orchestrator tests. The
// hasher contract (Hash then Verify) is covered in the security package.
type fakeHasher struct{}

func (fakeHasher) Hash(secret string) (string, error) {
	return "h:" + secret, nil
}

func (fakeHasher) Verify(secret, encoded string) (bool, error) {
	return encoded == "h:"+secret, nil
}

type fakeEventPublisher struct {
	loginAttempts []domain.LoginAttemptEvent
	locked        []domain.AccountLockedEvent
	changed       []domain.PasswordChangedEvent
	challenged    []domain.TwoFactorChallengedEvent
	provisioned   []domain.AccountProvisionedEvent
}

func (p *fakeEventPublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	p.loginAttempts = append(p.loginAttempts, event)
	return nil
}

func (p *fakeEventPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	p.locked = append(p.locked, event)
	return nil
}

func (p *fakeEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.changed = append(p.changed, event)
	return nil
}

func (p *fakeEventPublisher) PublishTwoFactorChallenged(_ context.Context, event domain.TwoFactorChallengedEvent) error {
	p.challenged = append(p.challenged, event)
	return nil
}

func (p *fakeEventPublisher) PublishAccountProvisioned(_ context.Context, event domain.AccountProvisionedEvent) error {
	p.provisioned = append(p.provisioned, event)
	return nil
}

type staticKeyProvider struct {
	key *rsa.PrivateKey
}

func (p *staticKeyProvider) GetSigningKey() (*rsa.PrivateKey, error) {
	return p.key, nil
}

func (p *staticKeyProvider) GetVerificationKey(string) (*rsa.PublicKey, error) {
	return &p.key.PublicKey, nil
}

func newTestIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	issuer, err := security.NewTokenIssuer(&staticKeyProvider{key: key}, "account-security", "test-key", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

// testClock is a mutable clock shared between a service and its stores.
type testClock struct {
	current time.Time
}

func newTestClock(at time.Time) *testClock {
	return &testClock{current: at}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func fixedCode(code string) func(int) (string, error) {
	return func(int) (string, error) {
		return code, nil
	}
}

func sequenceTemp(candidates ...string) func(int) (string, error) {
	index := 0
	return func(int) (string, error) {
		if index >= len(candidates) {
			return "", fmt.Errorf("out of candidates")
		}
		candidate := candidates[index]
		index++
		return candidate, nil
	}
}
