package domain

import "time"

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
	SideFlat  Side = "FLAT"
)

// Opposite returns the closing direction for a side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	}
	return SideFlat
}

// Position is the engine's cached view of the open position.
// The exchange is the source of truth; this copy is refreshed by
// polling and by user-stream fill events.
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   float64   `json:"quantity"` // base units, always >= 0
	EntryPrice float64   `json:"entry_price"`
	EnteredAt  time.Time `json:"entered_at"`
}

// Open reports whether the position holds any quantity. Value
// receiver so it can be called on snapshot copies directly.
func (p Position) Open() bool {
	return p.Quantity > 0 && p.Side != SideFlat
}

// SignedQuantity is positive for longs and negative for shorts,
// matching the venue's positionAmt convention.
func (p Position) SignedQuantity() float64 {
	if p.Side == SideShort {
		return -p.Quantity
	}
	return p.Quantity
}

// SideFromSigned maps a venue-signed quantity onto a Side.
func SideFromSigned(amt float64) Side {
	switch {
	case amt > 0:
		return SideLong
	case amt < 0:
		return SideShort
	}
	return SideFlat
}

// PnLPct is the unrealized return of a position at price, in percent.
// Longs profit when price rises, shorts when it falls.
func PnLPct(side Side, entry, price float64) float64 {
	if entry <= 0 || price <= 0 {
		return 0
	}
	if side == SideShort {
		return (entry/price - 1) * 100
	}
	return (price/entry - 1) * 100
}
