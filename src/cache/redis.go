package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	webhookKeyPrefix  = "webhook:event:"
	idempotencyKeyTTL = 24 * time.Hour
)

// EventDeduper short-circuits redelivered webhook events before they touch
// the database. The DB status CAS remains the source of truth; this only cuts
// redundant work on hot redelivery.
type EventDeduper struct {
	client *redis.Client
}

// NewEventDeduper creates a redis-backed deduper.
func NewEventDeduper(client *redis.Client) *EventDeduper {
	return &EventDeduper{client: client}
}

// FirstDelivery marks the event id seen and reports whether this is the first
// delivery.
func (d *EventDeduper) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, webhookKeyPrefix+eventID, 1, idempotencyKeyTTL).Result()
}
