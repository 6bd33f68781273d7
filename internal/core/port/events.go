package port

import (
	"context"

	"github.com/arklim/storefront-account-security/internal/core/domain"
)

// EventPublisher delivers security events to downstream consumers
// (notification service, audit sink). Publishing is best effort; callers
// log failures and continue.
type EventPublisher interface {
	PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishTwoFactorChallenged(ctx context.Context, event domain.TwoFactorChallengedEvent) error
	PublishAccountProvisioned(ctx context.Context, event domain.AccountProvisionedEvent) error
}
