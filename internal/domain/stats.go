package domain

// DailyStats aggregates per-period trade outcomes. trade_count is
// bumped on every inbound signal, the tier counters by the monitor
// loop, and sl_count additionally by the switch coordinator when a
// signal-driven close realizes a loss (an attribution heuristic, not a
// venue-reported stop fill).
type DailyStats struct {
	Period           string  `json:"period"`
	TradeCount       int     `json:"trade_count"`
	TP1Count         int     `json:"tp1_count"`
	TP2Count         int     `json:"tp2_count"`
	SLCount          int     `json:"sl_count"`
	CumulativePnLPct float64 `json:"cumulative_pnl_pct"`
}
