/**
 * @description
 * This file implements the notification relay: a thin, fire-and-forget
 * wrapper over the RabbitMQ publisher. Money movement must never fail or
 * roll back because an event could not be delivered, so every publish error
 * is logged and swallowed here.
 *
 * @dependencies
 * - pkg/rabbitmq: The event producer and payload types.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/playvault/economy-service/pkg/rabbitmq"
)

// Routing keys on the economy events exchange.
const (
	routingKeyBalanceUpdated = "user.balance.updated"
	routingKeyNotification   = "user.notification"
	routingKeyFinesUpdated   = "user.fines.updated"
	routingKeyFrozenChanged  = "user.frozen.changed"
)

// NotificationRelay publishes economy events without ever propagating
// delivery failures to the caller.
type NotificationRelay struct {
	publisher rabbitmq.Publisher
}

func NewNotificationRelay(publisher rabbitmq.Publisher) *NotificationRelay {
	return &NotificationRelay{publisher: publisher}
}

func (r *NotificationRelay) publish(ctx context.Context, routingKey string, body interface{}) {
	if r == nil || r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, rabbitmq.EconomyExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=notification_relay msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// BalanceUpdated announces an account's new balance.
func (r *NotificationRelay) BalanceUpdated(ctx context.Context, userID uuid.UUID, balance int64) {
	r.publish(ctx, routingKeyBalanceUpdated, rabbitmq.BalanceEvent{
		UserID:    userID,
		Balance:   balance,
		Timestamp: time.Now(),
	})
}

// Notify delivers a user-facing message. Kind is "success" or "error".
func (r *NotificationRelay) Notify(ctx context.Context, userID uuid.UUID, kind, message string) {
	r.publish(ctx, routingKeyNotification, rabbitmq.NotificationEvent{
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// FinesUpdated announces an account's new unpaid fine count.
func (r *NotificationRelay) FinesUpdated(ctx context.Context, userID uuid.UUID, unpaidCount int) {
	r.publish(ctx, routingKeyFinesUpdated, rabbitmq.FinesEvent{
		UserID:      userID,
		UnpaidCount: unpaidCount,
		Timestamp:   time.Now(),
	})
}

// FrozenStatusChanged announces a freeze or unfreeze of an account.
func (r *NotificationRelay) FrozenStatusChanged(ctx context.Context, userID uuid.UUID, isFrozen bool) {
	r.publish(ctx, routingKeyFrozenChanged, rabbitmq.FrozenEvent{
		UserID:    userID,
		IsFrozen:  isFrozen,
		Timestamp: time.Now(),
	})
}
