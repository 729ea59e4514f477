package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StatusQueueName is the queue bound to order.status.changed events;
// consumers (notify worker) read from it.
const StatusQueueName = queueName

// Handler processes a single delivery. It should be idempotent.
// Return nil => ACK; return error => NACK (requeue behavior controlled by Router).
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
