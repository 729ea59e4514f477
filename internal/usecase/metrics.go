package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffet_order_transitions_total",
			Help: "Order lifecycle transitions applied, by resulting status",
		},
		[]string{"status"},
	)

	noopTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffet_order_noop_transitions_total",
			Help: "Transition calls ignored because the order was not in an eligible state",
		},
		[]string{"op"},
	)

	stockAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buffet_stock_adjustments_total",
			Help: "Stock ledger debits and credits issued by the order engine",
		},
		[]string{"direction"},
	)

	stockAdjustFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffet_stock_adjust_failures_total",
			Help: "Per-line stock adjustments that failed and were left for manual reconciliation",
		},
	)

	shortCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "buffet_short_code_collisions_total",
			Help: "Short-code bind attempts lost to an existing code",
		},
	)
)
