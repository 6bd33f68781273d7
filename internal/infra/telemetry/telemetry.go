package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/storefront-account-security/internal/infra/config"
)

// Provider represents a telemetry provider handle. HTTP traffic metrics live
// in the transport middleware; the provider covers domain-level counters.
type Provider struct {
	loginAttempts *prometheus.CounterVec
	lockouts      prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	loginAttempts := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accsec",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome",
	}, []string{"outcome"})

	lockouts := promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "accsec",
		Name:      "account_lockouts_total",
		Help:      "Accounts locked after exceeding the failed login threshold",
	})

	return &Provider{
		loginAttempts: loginAttempts,
		lockouts:      lockouts,
	}, nil
}

// CountLoginAttempt records one login attempt with the given outcome label
// (success or failure).
func (p *Provider) CountLoginAttempt(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// CountLockout records one account lockout.
func (p *Provider) CountLockout() {
	if p == nil {
		return
	}
	p.lockouts.Inc()
}
