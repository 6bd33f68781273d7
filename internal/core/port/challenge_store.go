package port

import (
	"context"
	"time"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

// ChallengeStore keeps at most one outstanding two-factor challenge per
// username. Store replaces any prior code (last write wins); Delete enforces
// single-use consumption.
type ChallengeStore interface {
	Store(ctx context.Context, username, code string, ttl time.Duration) (*domain.TwoFactorChallenge, error)
	Fetch(ctx context.Context, username string) (*domain.TwoFactorChallenge, error)
	IncrementAttempts(ctx context.Context, username string) (int, error)
	Delete(ctx context.Context, username string) error
}
