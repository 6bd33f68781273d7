package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/repository"
)

const (
	defaultChallengePrefix = "2fa"

	fieldCode      = "code"
	fieldIssuedAt  = "issued_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// ChallengeRepository persists two-factor challenges in Redis hashes. The key
// TTL mirrors the challenge window, so abandoned codes vanish on their own.
type ChallengeRepository struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

// NewChallengeRepository constructs a challenge repository with the provided Redis client and key prefix.
func NewChallengeRepository(client *red.Client, keyPrefix string) *ChallengeRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultChallengePrefix
	}

	return &ChallengeRepository{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Store writes a challenge for the username, replacing any outstanding one.
func (r *ChallengeRepository) Store(ctx context.Context, username, code string, ttl time.Duration) (*domain.TwoFactorChallenge, error) {
	username = domain.NormalizeUsername(username)
	code = strings.TrimSpace(code)

	switch {
	case username == "":
		return nil, errors.New("username is required")
	case code == "":
		return nil, errors.New("code is required")
	case ttl <= 0:
		return nil, errors.New("ttl must be positive")
	}

	now := r.now().UTC()
	expiresAt := now.Add(ttl)

	key := r.key(username)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCode:      code,
		fieldIssuedAt:  strconv.FormatInt(now.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(expiresAt.Unix(), 10),
		fieldAttempts:  "0",
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis store challenge: %w", err)
	}

	return &domain.TwoFactorChallenge{
		Username:  username,
		Code:      code,
		Attempts:  0,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Fetch retrieves the outstanding challenge for a username.
func (r *ChallengeRepository) Fetch(ctx context.Context, username string) (*domain.TwoFactorChallenge, error) {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	values, err := r.client.HGetAll(ctx, r.key(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall challenge: %w", err)
	}
	if len(values) == 0 {
		return nil, repository.ErrNotFound
	}

	code := strings.TrimSpace(values[fieldCode])
	if code == "" {
		return nil, repository.ErrNotFound
	}

	issuedAt, err := parseUnix(values[fieldIssuedAt])
	if err != nil {
		return nil, fmt.Errorf("parse issued_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.TwoFactorChallenge{
		Username:  username,
		Code:      code,
		Attempts:  attempts,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IncrementAttempts increments the verification attempt counter and returns the new value.
func (r *ChallengeRepository) IncrementAttempts(ctx context.Context, username string) (int, error) {
	if _, err := r.Fetch(ctx, username); err != nil {
		return 0, err
	}

	count, err := r.client.HIncrBy(ctx, r.key(domain.NormalizeUsername(username)), fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby challenge attempts: %w", err)
	}

	return int(count), nil
}

// Delete removes the challenge entry, enforcing single-use semantics.
func (r *ChallengeRepository) Delete(ctx context.Context, username string) error {
	username = domain.NormalizeUsername(username)
	if username == "" {
		return errors.New("username is required")
	}

	deleted, err := r.client.Del(ctx, r.key(username)).Result()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// WithClock overrides the internal clock, used in tests.
func (r *ChallengeRepository) WithClock(clock func() time.Time) {
	if clock != nil {
		r.now = clock
	}
}

func (r *ChallengeRepository) key(username string) string {
	return fmt.Sprintf("%s:%s", r.prefix, username)
}

func parseUnix(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(seconds, 0).UTC(), nil
}

var _ port.ChallengeStore = (*ChallengeRepository)(nil)
