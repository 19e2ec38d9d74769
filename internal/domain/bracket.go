package domain

import "time"

type BracketKind string

const (
	BracketTP1 BracketKind = "tp1"
	BracketTP2 BracketKind = "tp2"
	BracketSL  BracketKind = "sl"
)

// BracketLevel is one leg of the laddered exit attached to a position.
// Each level fires at most once per entry; a new entry reinitializes
// the whole set.
type BracketLevel struct {
	Kind         BracketKind `json:"kind"`
	TriggerPrice float64     `json:"trigger_price"`
	Quantity     float64     `json:"quantity"`
	Done         bool        `json:"done"`
	FillPrice    float64     `json:"fill_price,omitempty"`
	FillQuantity float64     `json:"fill_quantity,omitempty"`
	FilledAt     time.Time   `json:"filled_at,omitempty"`
	PnLPct       float64     `json:"pnl_pct,omitempty"`
}

// BracketSet holds the three exit levels for the current position.
type BracketSet struct {
	TP1 BracketLevel `json:"tp1"`
	TP2 BracketLevel `json:"tp2"`
	SL  BracketLevel `json:"sl"`
}
