package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderPaid      = "order.paid"
	TypeOrderFailed    = "order.payment_failed"
	TypeOrderCancelled = "order.cancelled"
)

// Event is a domain fact about an order. Key orders events of one aggregate.
type Event struct {
	Type       string    `json:"event_type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

func New(eventType, key string, payload any) Event {
	return Event{Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Payload: payload}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the application log. It is used when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	log.Infow("event", "event_type", e.Type, "key", e.Key, "payload", string(body))
	return nil
}

func (LogPublisher) Close() error { return nil }

// PublishBestEffort publishes e and only logs failures. Callers use it after
// the state change the event describes is already committed.
func PublishBestEffort(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warnw("publish event failed", "event_type", e.Type, "key", e.Key, "error", err)
	}
}
