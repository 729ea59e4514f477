package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/configs"
	"github.com/julpar/coope-buffet/internal/adapter/payment"
	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/julpar/coope-buffet/internal/usecase"
)

// PaymentHandler bridges the external payment provider and the order
// engine: preference creation before redirect, and the asynchronous
// webhook that confirms payment.
type PaymentHandler struct {
	orders   *usecase.Orders
	provider *payment.Client
	cfg      configs.Config
}

func NewPaymentHandler(orders *usecase.Orders, provider *payment.Client, cfg configs.Config) *PaymentHandler {
	return &PaymentHandler{orders: orders, provider: provider, cfg: cfg}
}

type preferenceReq struct {
	OrderID string `json:"orderId" binding:"required"`
}

func (h *PaymentHandler) CreatePreference(c *gin.Context) {
	var req preferenceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	o, err := h.orders.Get(ctx, req.OrderID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if o.Status != entity.StatusPendingPayment {
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_pending"})
		return
	}

	customerBase := strings.TrimSuffix(h.cfg.Payments.CustomerBase, "/")
	publicBase := strings.TrimSuffix(h.cfg.Payments.PublicBase, "/")
	if !strings.HasPrefix(customerBase, "http") || !strings.HasPrefix(publicBase, "http") {
		// Fail fast with a clear configuration error instead of sending the
		// provider an invalid request.
		logging.From(c).Error("payments base URLs not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "config_error"})
		return
	}

	// The short code rides along as external_reference so the return URL
	// and the webhook can both resolve the order without a session.
	returnURL := customerBase + "/return-mp?external_reference=" + url.QueryEscape(o.ShortCode)

	items := make([]payment.PreferenceItem, 0, len(o.Items))
	for _, it := range o.Items {
		title := it.Name
		if title == "" {
			title = it.ID
		}
		items = append(items, payment.PreferenceItem{
			Title:     title,
			Quantity:  it.Qty,
			UnitPrice: it.UnitPrice,
		})
	}

	pref, err := h.provider.CreatePreference(ctx, payment.PreferenceInput{
		ExternalReference: o.ShortCode,
		Items:             items,
		SuccessURL:        returnURL,
		FailureURL:        returnURL,
		PendingURL:        returnURL,
		NotificationURL:   publicBase + "/v1/payments/mercadopago/webhook",
	})
	if err != nil {
		logging.From(c).Error("create preference", "order_id", o.ID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "provider_unavailable"})
		return
	}

	logging.From(c).Info("preference created",
		"order_id", o.ID, "short_code", o.ShortCode, "preference_id", pref.ID)
	c.JSON(http.StatusOK, gin.H{"preferenceId": pref.ID, "initPoint": pref.InitPoint})
}

type webhookBody struct {
	ID   any    `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID any `json:"id"`
	} `json:"data"`
}

// Webhook handles asynchronous provider notifications. It always answers
// 200: the provider retries non-2xx responses and duplicate processing is
// already safe on the markPaid side.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var body webhookBody
	_ = c.ShouldBindJSON(&body)

	paymentID := firstNonEmpty(
		asString(body.Data.ID),
		c.Query("data.id"),
		c.Query("id"),
		asString(body.ID),
	)
	typ := firstNonEmpty(body.Type, c.Query("type"), c.Query("topic"))

	if typ != "payment" && typ != "merchant_order" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if paymentID == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	log := logging.From(c)
	p, err := h.provider.GetPayment(ctx, paymentID)
	if err != nil {
		log.Error("webhook payment lookup", "payment_id", paymentID, "err", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if p.Status != "approved" || p.ExternalReference == "" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	o, err := h.orders.GetByCode(ctx, p.ExternalReference)
	if err != nil {
		log.Warn("webhook approved but order not found", "code", p.ExternalReference, "err", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	externalID := p.ID.String()
	if externalID == "" {
		externalID = paymentID
	}
	if _, err := h.orders.MarkPaid(ctx, o.ID, externalID); err != nil {
		log.Error("webhook markPaid", "order_id", o.ID, "err", err)
	} else {
		log.Info("order marked paid via webhook", "order_id", o.ID, "payment_id", externalID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// asString tolerates the provider sending ids as strings or numbers.
func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
