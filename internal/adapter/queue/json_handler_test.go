package queue

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestJSONHandlerDecodesAndDispatches(t *testing.T) {
	type msg struct {
		OrderID string `json:"orderId"`
	}
	var got msg
	h := JSONHandler[msg]{HandleFunc: func(_ context.Context, m msg) error {
		got = m
		return nil
	}}

	err := h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{"orderId":"o_1"}`)})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got.OrderID != "o_1" {
		t.Errorf("orderId = %q, want o_1", got.OrderID)
	}
}

func TestJSONHandlerFlagsUndecodableBody(t *testing.T) {
	h := JSONHandler[struct{}]{HandleFunc: func(context.Context, struct{}) error {
		t.Fatal("handler must not run on a malformed body")
		return nil
	}}

	err := h.Handle(context.Background(), amqp.Delivery{
		Body:       []byte("not json"),
		RoutingKey: "order.status.changed",
	})
	if !errors.Is(err, ErrBadPayload) {
		t.Fatalf("got %v, want ErrBadPayload so the router drops instead of requeueing", err)
	}
}

func TestJSONHandlerPassesThroughHandlerErrors(t *testing.T) {
	want := errors.New("downstream busy")
	h := JSONHandler[struct{}]{HandleFunc: func(context.Context, struct{}) error {
		return want
	}}

	err := h.Handle(context.Background(), amqp.Delivery{Body: []byte(`{}`)})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want handler error preserved", err)
	}
	if errors.Is(err, ErrBadPayload) {
		t.Fatal("a handler failure is retryable, not a bad payload")
	}
}
