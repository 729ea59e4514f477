package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/usecase"
)

// StaffHandler serves the cashier/fulfillment endpoints. Transition calls
// on orders in an ineligible state come back 200 with the unchanged order;
// clients compare the returned status against what they asked for.
type StaffHandler struct {
	orders *usecase.Orders
}

func NewStaffHandler(orders *usecase.Orders) *StaffHandler {
	return &StaffHandler{orders: orders}
}

func (h *StaffHandler) List(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	state := c.DefaultQuery("state", string(entity.StatusPaid))

	var (
		list []*entity.Order
		err  error
	)
	if state == "all" {
		list, err = h.orders.ListAll(ctx)
	} else {
		list, err = h.orders.ListByState(ctx, entity.Status(state))
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	if list == nil {
		list = []*entity.Order{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *StaffHandler) GetByCode(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	o, err := h.orders.GetByCode(ctx, c.Param("code"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type markPaidReq struct {
	ExternalID string `json:"externalId"`
}

func (h *StaffHandler) MarkPaid(c *gin.Context) {
	var req markPaidReq
	_ = c.ShouldBindJSON(&req) // body optional for cash payments

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.MarkPaid(ctx, c.Param("id"), req.ExternalID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type fulfillmentReq struct {
	Fulfilled bool `json:"fulfilled"`
}

func (h *StaffHandler) SetFulfillment(c *gin.Context) {
	var req fulfillmentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.SetFulfillment(ctx, c.Param("id"), req.Fulfilled)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *StaffHandler) Cancel(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.Cancel(ctx, c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
