package usecase

import "time"

// EngineConfig carries every tunable of the position lifecycle engine.
// Intervals and thresholds are injected here rather than hardcoded so
// tests can shrink them to milliseconds.
type EngineConfig struct {
	Symbol     string  `json:"symbol"`
	Leverage   int     `json:"leverage"`
	MarginType string  `json:"margin_type"` // ISOLATED or CROSSED
	Allocation float64 `json:"allocation"`  // fraction of free quote balance, <= 1.0
	QuoteAsset string  `json:"quote_asset"`

	TP1Pct     float64 `json:"tp1_pct"`      // first take-profit threshold, percent
	TP2Pct     float64 `json:"tp2_pct"`      // second take-profit threshold, percent
	SLPct      float64 `json:"sl_pct"`       // stop-loss distance, percent (positive number)
	TrailSLPct float64 `json:"trail_sl_pct"` // tightened stop once tp1 is done, percent
	TP1Part    float64 `json:"tp1_part"`     // share of the position exited at tp1
	TP2Part    float64 `json:"tp2_part"`     // share of the remainder exited at tp2

	PollInterval      time.Duration `json:"poll_interval"`
	ReconcileTimeout  time.Duration `json:"reconcile_timeout"`
	ReconcileInterval time.Duration `json:"reconcile_interval"`

	DryRun bool `json:"dry_run"`
}

// DefaultEngineConfig mirrors the production parameter set.
func DefaultEngineConfig(symbol string) EngineConfig {
	return EngineConfig{
		Symbol:            symbol,
		Leverage:          1,
		MarginType:        "ISOLATED",
		Allocation:        0.98,
		QuoteAsset:        "USDT",
		TP1Pct:            0.5,
		TP2Pct:            1.1,
		SLPct:             0.5,
		TrailSLPct:        0.1,
		TP1Part:           0.3,
		TP2Part:           0.5,
		PollInterval:      3 * time.Second,
		ReconcileTimeout:  12 * time.Second,
		ReconcileInterval: 1 * time.Second,
	}
}
