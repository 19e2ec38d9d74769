package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_signals_total",
			Help: "Inbound directional signals by action",
		},
		[]string{"action"}, // BUY|SELL|other
	)

	entriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_entries_total",
			Help: "Entry attempts by outcome (filled or skip reason)",
		},
		[]string{"result"},
	)

	exitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exits_total",
			Help: "Monitor-driven exits by tier",
		},
		[]string{"tier"}, // tp1|tp2|sl
	)

	unrealizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_unrealized_pnl_pct",
			Help: "Unrealized PnL of the open position in percent",
		},
	)
)

func init() {
	prometheus.MustRegister(signalsTotal, entriesTotal, exitsTotal, unrealizedPnL)
}

func IncSignal(action string)  { signalsTotal.WithLabelValues(action).Inc() }
func IncEntry(result string)   { entriesTotal.WithLabelValues(result).Inc() }
func IncExit(tier string)      { exitsTotal.WithLabelValues(tier).Inc() }
func SetUnrealizedPnL(pct float64) { unrealizedPnL.Set(pct) }
