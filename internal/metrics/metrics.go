// Package metrics — Prometheus-счётчики бота, отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_cycles_total",
			Help: "Completed trading cycles per account",
		},
		[]string{"account"},
	)

	CycleAborts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_cycle_aborts_total",
			Help: "Cycles aborted on balance refresh failure",
		},
		[]string{"account"},
	)

	OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Orders accepted by the exchange",
		},
		[]string{"account", "side"},
	)

	OrderRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_order_retries_total",
			Help: "Transient order failures that triggered a retry",
		},
		[]string{"account"},
	)

	ReconcileCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reconcile_closes_total",
			Help: "Locally held positions deleted after the exchange confirmed zero amount",
		},
		[]string{"account"},
	)

	ReconcileAdoptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_reconcile_adoptions_total",
			Help: "Ghost positions adopted from the exchange",
		},
		[]string{"account"},
	)

	Equity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_equity",
			Help: "Wallet balance snapshot per account",
		},
		[]string{"account"},
	)

	KillSwitch = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_kill_switch",
			Help: "1 when the daily-loss kill switch is tripped",
		},
		[]string{"account"},
	)
)

func init() {
	prometheus.MustRegister(
		Cycles,
		CycleAborts,
		OrdersPlaced,
		OrderRetries,
		ReconcileCloses,
		ReconcileAdoptions,
		Equity,
		KillSwitch,
	)
}
