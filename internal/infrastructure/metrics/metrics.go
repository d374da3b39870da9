// Package metrics registers the bot's Prometheus instruments. They are
// registered on the default registry in init() and served at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Signals counts accepted webhook signals by stance.
	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Webhook signals accepted, by stance",
		},
		[]string{"stance"},
	)

	// Duplicates counts webhooks rejected by the deduplicator.
	Duplicates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_webhook_duplicates_total",
			Help: "Webhook deliveries rejected as duplicates",
		},
	)

	// Orders counts market orders sent to the venue.
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_orders_total",
			Help: "Market orders placed, by side and kind",
		},
		[]string{"side", "kind"}, // kind: open|close
	)

	// OrderFailures counts orders the venue rejected or that timed out.
	OrderFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_order_failures_total",
			Help: "Market orders that failed",
		},
	)

	// ProtectiveActions counts risk-engine triggers by action
	// (stop_loss, trailing_lock, reentry).
	ProtectiveActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_protective_actions_total",
			Help: "Protective actions taken by the risk engine",
		},
		[]string{"action"},
	)

	// Equity is the last fetched available balance.
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usd",
			Help: "Available balance in margin coin",
		},
	)

	// LastPrice is the last observed instrument price.
	LastPrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_last_price",
			Help: "Last observed price of the tracked symbol",
		},
	)

	// SignalActive flips 1/0 with the master protection gate.
	SignalActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_signal_active",
			Help: "1 while the signal source holds a directional stance",
		},
	)
)

func init() {
	prometheus.MustRegister(
		Signals,
		Duplicates,
		Orders,
		OrderFailures,
		ProtectiveActions,
		Equity,
		LastPrice,
		SignalActive,
	)
}
