// internal/realtime/publisher.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const billingChannel = "billing.events"

// BillingEvent is published on redis whenever a subscription changes state,
// so the realtime layer can push dashboard updates. Consumers live outside
// this service.
type BillingEvent struct {
	TenantID       int64     `json:"tenant_id"`
	SubscriptionID int64     `json:"subscription_id"`
	PlanType       string    `json:"plan_type"`
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher is an explicit handle to the realtime fan-out, injected where
// needed instead of reached through a process-wide singleton.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish sends one billing event. Failures are returned, not retried; the
// caller runs this as an isolated background task.
func (p *Publisher) Publish(ctx context.Context, ev BillingEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal billing event: %w", err)
	}
	if err := p.client.Publish(ctx, billingChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish billing event: %w", err)
	}
	return nil
}
