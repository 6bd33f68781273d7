package telemetry

import (
	"context"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
)

// InstrumentedPublisher decorates an event publisher with domain counters so
// login and lockout activity shows up in /metrics regardless of the broker
// backend in use.
type InstrumentedPublisher struct {
	next     port.EventPublisher
	provider *Provider
}

// InstrumentPublisher wraps next with metric counting. A nil provider returns
// next unchanged.
func InstrumentPublisher(next port.EventPublisher, provider *Provider) port.EventPublisher {
	if provider == nil {
		return next
	}
	return &InstrumentedPublisher{next: next, provider: provider}
}

func (p *InstrumentedPublisher) PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error {
	outcome := "failure"
	if event.Succeeded {
		outcome = "success"
	}
	p.provider.CountLoginAttempt(outcome)
	return p.next.PublishLoginAttempt(ctx, event)
}

func (p *InstrumentedPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	p.provider.CountLockout()
	return p.next.PublishAccountLocked(ctx, event)
}

func (p *InstrumentedPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	return p.next.PublishPasswordChanged(ctx, event)
}

func (p *InstrumentedPublisher) PublishTwoFactorChallenged(ctx context.Context, event domain.TwoFactorChallengedEvent) error {
	return p.next.PublishTwoFactorChallenged(ctx, event)
}

func (p *InstrumentedPublisher) PublishAccountProvisioned(ctx context.Context, event domain.AccountProvisionedEvent) error {
	return p.next.PublishAccountProvisioned(ctx, event)
}
