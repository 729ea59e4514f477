package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/julpar/coope-buffet/internal/usecase"
)

// OrderHandler serves the customer-facing order endpoints (guest flow; no
// authentication, payment confirms later).
type OrderHandler struct {
	orders *usecase.Orders
}

func NewOrderHandler(orders *usecase.Orders) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type createOrderReq struct {
	Channel       string              `json:"channel" binding:"required"`
	Items         []usecase.LineInput `json:"items" binding:"required,min=1,dive"`
	CustomerName  string              `json:"customerName"`
	PaymentMethod string              `json:"paymentMethod"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	o, err := h.orders.CreatePending(ctx, usecase.CreatePendingInput{
		Channel:       entity.Channel(req.Channel),
		Items:         req.Items,
		CustomerName:  req.CustomerName,
		PaymentMethod: entity.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) GetByID(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.orders.Get(ctx, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) GetByCode(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.orders.GetByCode(ctx, c.Param("code"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// respondErr maps engine errors: not-found is the only hard domain error;
// anything else is a transient store failure the caller should retry.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, usecase.ErrNoItems):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_order"})
	default:
		logging.From(c).Error("store failure", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
	}
}
