package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginAttempt logs account.login.attempted events.
func (p *StubPublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	payload := map[string]any{
		"account_id":   event.AccountID,
		"username":     event.Username,
		"succeeded":    event.Succeeded,
		"locked":       event.Locked,
		"ip_address":   event.IPAddress,
		"attempted_at": event.AttemptedAt,
		"metadata":     event.Metadata,
	}
	p.logEvent("account.login.attempted", event.AccountID, event.AttemptedAt, payload)
	return nil
}

// PublishAccountLocked logs account.locked events.
func (p *StubPublisher) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	payload := map[string]any{
		"account_id":   event.AccountID,
		"username":     event.Username,
		"locked_at":    event.LockedAt,
		"locked_until": event.LockedUntil,
		"metadata":     event.Metadata,
	}
	p.logEvent("account.locked", event.AccountID, event.LockedAt, payload)
	return nil
}

// PublishPasswordChanged logs account.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"changed_at": event.ChangedAt,
		"changed_by": event.ChangedBy,
		"recovery":   event.Recovery,
		"metadata":   event.Metadata,
	}
	p.logEvent("account.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishTwoFactorChallenged logs account.twofactor.challenged events.
func (p *StubPublisher) PublishTwoFactorChallenged(_ context.Context, event domain.TwoFactorChallengedEvent) error {
	payload := map[string]any{
		"account_id":    event.AccountID,
		"username":      event.Username,
		"challenged_at": event.ChallengedAt,
		"expires_at":    event.ExpiresAt,
		"metadata":      event.Metadata,
	}
	p.logEvent("account.twofactor.challenged", event.AccountID, event.ChallengedAt, payload)
	return nil
}

// PublishAccountProvisioned logs account.provisioned events.
func (p *StubPublisher) PublishAccountProvisioned(_ context.Context, event domain.AccountProvisionedEvent) error {
	payload := map[string]any{
		"account_id":     event.AccountID,
		"username":       event.Username,
		"role":           event.Role,
		"provisioned_at": event.ProvisionedAt,
		"source":         event.Source,
		"metadata":       event.Metadata,
	}
	p.logEvent("account.provisioned", event.AccountID, event.ProvisionedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
