package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/internal/entity"
	"github.com/julpar/coope-buffet/internal/usecase"
)

type MenuHandler struct {
	menu *usecase.Menu
}

func NewMenuHandler(menu *usecase.Menu) *MenuHandler {
	return &MenuHandler{menu: menu}
}

// PublicMenu returns active items grouped by category with availability
// labels, for the customer app.
func (h *MenuHandler) PublicMenu(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	cats, err := h.menu.PublicMenu(ctx)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats})
}

func (h *MenuHandler) ListItems(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.menu.ListItems(ctx)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *MenuHandler) UpsertItem(c *gin.Context) {
	var item entity.MenuItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	item.ID = c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.menu.Upsert(ctx, item); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type adjustStockReq struct {
	Delta int `json:"delta" binding:"required"`
}

// AdjustStock applies a manual stock correction through the same ledger
// operation the order engine uses; the result is floor-clamped at zero.
func (h *MenuHandler) AdjustStock(c *gin.Context) {
	var req adjustStockReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	stock, err := h.menu.AdjustStock(ctx, c.Param("id"), req.Delta)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "stock": stock})
}

func (h *MenuHandler) UpsertCategory(c *gin.Context) {
	var cat entity.Category
	if err := c.ShouldBindJSON(&cat); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}
	cat.ID = c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.menu.UpsertCategory(ctx, cat); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}
