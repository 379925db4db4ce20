// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tippy_settlement_callbacks_total",
		Help: "Settlement provider callbacks received, by reported result.",
	}, []string{"result"})

	TipsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tippy_tips_created_total",
		Help: "Tips recorded at intake.",
	})

	PayoutsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tippy_payouts_generated_total",
		Help: "Monthly payout rows created, by recipient kind.",
	}, []string{"recipient"})

	DisbursementItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tippy_disbursement_items_total",
		Help: "Disbursement batch items, by rail and outcome.",
	}, []string{"rail", "status"})

	RailCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tippy_rail_callbacks_total",
		Help: "Disbursement rail callbacks received, by rail.",
	}, []string{"rail"})
)
