package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrBadPayload marks a delivery whose body cannot be decoded. The Router
// drops such deliveries instead of requeueing: redelivery cannot fix a
// malformed message.
var ErrBadPayload = errors.New("bad payload")

// JSONHandler adapts a typed function into a raw Delivery handler.
// It unmarshals d.Body into T and calls HandleFunc(ctx, T).
type JSONHandler[T any] struct {
	HandleFunc func(ctx context.Context, msg T) error
}

func (h JSONHandler[T]) Handle(ctx context.Context, d amqp.Delivery) error {
	var v T
	if err := json.Unmarshal(d.Body, &v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrBadPayload, d.RoutingKey, err)
	}
	return h.HandleFunc(ctx, v)
}
