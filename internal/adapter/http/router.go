package http

import (
	"github.com/gin-gonic/gin"
	"github.com/julpar/coope-buffet/internal/adapter/http/middleware"
	"github.com/julpar/coope-buffet/internal/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	oh *OrderHandler,
	sh *StaffHandler,
	mh *MenuHandler,
	ph *PaymentHandler,
	th *TokenHandler,
	authz *middleware.Authz,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logging(logging.New("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/v1/token", th.IssueToken)

	v1 := r.Group("/v1")
	{
		v1.GET("/menu", mh.PublicMenu)
		v1.POST("/orders", oh.Create)
		v1.GET("/orders/:id", oh.GetByID)
		v1.GET("/orders/code/:code", oh.GetByCode)
		v1.POST("/payments/mercadopago/preference", ph.CreatePreference)
		v1.POST("/payments/mercadopago/webhook", ph.Webhook)
	}

	staff := v1.Group("/staff")
	{
		staff.GET("/orders", authz.Require("orders.read"), sh.List)
		staff.GET("/orders/code/:code", authz.Require("orders.read"), sh.GetByCode)
		staff.POST("/orders/:id/paid", authz.Require("orders.write"), sh.MarkPaid)
		staff.POST("/orders/:id/fulfillment", authz.Require("orders.write"), sh.SetFulfillment)
		staff.POST("/orders/:id/cancel", authz.Require("orders.write"), sh.Cancel)

		staff.GET("/menu/items", authz.Require("orders.read"), mh.ListItems)
		staff.PUT("/menu/items/:id", authz.Require("menu.write"), mh.UpsertItem)
		staff.POST("/menu/items/:id/stock", authz.Require("menu.write"), mh.AdjustStock)
		staff.PUT("/menu/categories/:id", authz.Require("menu.write"), mh.UpsertCategory)
	}

	return r
}
