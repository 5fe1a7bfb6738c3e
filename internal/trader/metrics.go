package trader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the trading engine. Gauges are refreshed on the
// performance tick; counters are bumped at the point of the event.

var tradesOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "trades_opened_total",
		Help:      "Total number of opened trades",
	},
	[]string{"strategy", "side"},
)

var tradesClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "trades_closed_total",
		Help:      "Total number of closed trades",
	},
	[]string{"reason"},
)

var intentsRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "intents_rejected_total",
		Help:      "Total number of trade intents rejected before execution",
	},
	[]string{"cause"},
)

var riskBreaches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "trader",
		Subsystem: "risk",
		Name:      "limit_breaches_total",
		Help:      "Total number of portfolio risk limit breaches",
	},
	[]string{"limit"},
)

var equityGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "equity",
		Help:      "Current total equity in account currency",
	},
)

var availableCapitalGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "available_capital",
		Help:      "Capital available for new trades",
	},
)

var openPositionsGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "trader",
		Subsystem: "engine",
		Name:      "open_positions",
		Help:      "Number of currently open trades",
	},
)
