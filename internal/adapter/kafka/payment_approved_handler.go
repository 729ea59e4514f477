package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/julpar/coope-buffet/internal/usecase"
)

// PaymentApprovedHandler applies payment relay events to the order engine.
// The relay delivers at least once; markPaid being idempotent is what makes
// duplicates harmless here.
type PaymentApprovedHandler struct {
	orders *usecase.Orders
}

func NewPaymentApprovedHandler(orders *usecase.Orders) *PaymentApprovedHandler {
	return &PaymentApprovedHandler{orders: orders}
}

func (h *PaymentApprovedHandler) Handle(ctx context.Context, ev usecase.PaymentEventMsg) error {
	log := logging.New("payment-events")

	if ev.Status != "approved" {
		return nil
	}
	if ev.ExternalReference == "" {
		log.Warn("approved event without external reference", "event_id", ev.EventID)
		return nil
	}

	o, err := h.orders.GetByCode(ctx, ev.ExternalReference)
	if err != nil {
		if errors.Is(err, usecase.ErrNotFound) {
			// Nothing to retry against; drop it.
			log.Warn("approved event for unknown order", "code", ev.ExternalReference, "event_id", ev.EventID)
			return nil
		}
		return err
	}

	o, err = h.orders.MarkPaid(ctx, o.ID, ev.PaymentID)
	if err != nil {
		return err
	}
	switch {
	case o.Status == entity.StatusPaid:
		log.Info("payment event applied",
			"order_id", o.ID, "status", string(o.Status), "payment_id", ev.PaymentID)
		return nil
	case o.Status.Terminal():
		// Cancelled or already fulfilled; the money side is reconciled by
		// staff, nothing to apply here.
		log.Warn("approved event for terminal order",
			"order_id", o.ID, "status", string(o.Status), "payment_id", ev.PaymentID)
		return nil
	default:
		// Still pending_payment: a concurrent transition held the order's
		// lease for the whole retry window and the debit never ran. Fail the
		// delivery so the event comes back instead of being acked and lost.
		return fmt.Errorf("payment %s not applied to order %s: transition lease busy", ev.PaymentID, o.ID)
	}
}
