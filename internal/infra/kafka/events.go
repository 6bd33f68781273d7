package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/storefront-account-security/internal/core/domain"
	"github.com/arklim/storefront-account-security/internal/core/port"
	"github.com/arklim/storefront-account-security/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginAttempt publishes account.login.attempted events.
func (p *EventPublisher) PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		Username    string         `json:"username"`
		Succeeded   bool           `json:"succeeded"`
		Locked      bool           `json:"locked"`
		IPAddress   *string        `json:"ip_address,omitempty"`
		AttemptedAt time.Time      `json:"attempted_at"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		Username:    event.Username,
		Succeeded:   event.Succeeded,
		Locked:      event.Locked,
		IPAddress:   event.IPAddress,
		AttemptedAt: event.AttemptedAt.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "account.login.attempted", event.AccountID, event.AttemptedAt, payload)
}

// PublishAccountLocked publishes account.locked events.
func (p *EventPublisher) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	payload := struct {
		AccountID   string         `json:"account_id"`
		Username    string         `json:"username"`
		LockedAt    time.Time      `json:"locked_at"`
		LockedUntil time.Time      `json:"locked_until"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:   event.AccountID,
		Username:    event.Username,
		LockedAt:    event.LockedAt.UTC(),
		LockedUntil: event.LockedUntil.UTC(),
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "account.locked", event.AccountID, event.LockedAt, payload)
}

// PublishPasswordChanged publishes account.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		AccountID string         `json:"account_id"`
		ChangedAt time.Time      `json:"changed_at"`
		ChangedBy string         `json:"changed_by"`
		Recovery  bool           `json:"recovery"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		AccountID: event.AccountID,
		ChangedAt: event.ChangedAt.UTC(),
		ChangedBy: event.ChangedBy,
		Recovery:  event.Recovery,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "account.password.changed", event.AccountID, event.ChangedAt, payload)
}

// PublishTwoFactorChallenged publishes account.twofactor.challenged events.
func (p *EventPublisher) PublishTwoFactorChallenged(ctx context.Context, event domain.TwoFactorChallengedEvent) error {
	payload := struct {
		AccountID    string         `json:"account_id"`
		Username     string         `json:"username"`
		ChallengedAt time.Time      `json:"challenged_at"`
		ExpiresAt    time.Time      `json:"expires_at"`
		Metadata     map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		ChallengedAt: event.ChallengedAt.UTC(),
		ExpiresAt:    event.ExpiresAt.UTC(),
		Metadata:     event.Metadata,
	}

	return p.publish(ctx, event.EventID, "account.twofactor.challenged", event.AccountID, event.ChallengedAt, payload)
}

// PublishAccountProvisioned publishes account.provisioned events.
func (p *EventPublisher) PublishAccountProvisioned(ctx context.Context, event domain.AccountProvisionedEvent) error {
	payload := struct {
		AccountID     string         `json:"account_id"`
		Username      string         `json:"username"`
		Role          string         `json:"role"`
		ProvisionedAt time.Time      `json:"provisioned_at"`
		Source        string         `json:"source"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		AccountID:     event.AccountID,
		Username:      event.Username,
		Role:          event.Role,
		ProvisionedAt: event.ProvisionedAt.UTC(),
		Source:        event.Source,
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "account.provisioned", event.AccountID, event.ProvisionedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
