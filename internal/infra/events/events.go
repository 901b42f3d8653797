package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ExchangeName = "bookings"
	ExchangeKind = "topic"

	BookingConfirmed          = "booking.confirmed"
	BookingCanceled           = "booking.canceled"
	TenantOnboardingAdvanced  = "tenant.onboarding.advanced"
	PaymentRefundedOnCapacity = "payment.refunded_capacity"
)

// Envelope is the message body written to the exchange.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey, tenantID string, payload any) error
}

func NewEnvelope(routingKey, tenantID string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Data:       body,
	}, nil
}

// Nop drops every event. Used when RabbitMQ is not configured.
type Nop struct {
	Log *zap.Logger
}

func (n Nop) Publish(_ context.Context, routingKey, tenantID string, _ any) error {
	if n.Log != nil {
		n.Log.Debug("event dropped", zap.String("routing_key", routingKey), zap.String("tenant_id", tenantID))
	}
	return nil
}

// Memory keeps published envelopes in order.
type Memory struct {
	mu        sync.Mutex
	envelopes []Envelope
}

func (m *Memory) Publish(_ context.Context, routingKey, tenantID string, payload any) error {
	env, err := NewEnvelope(routingKey, tenantID, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.envelopes = append(m.envelopes, env)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Envelopes() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

func (m *Memory) Types() []string {
	envs := m.Envelopes()
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}
