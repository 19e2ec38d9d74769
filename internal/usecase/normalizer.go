package usecase

import "github.com/shopspring/decimal"

// Rounding policy: order quantities are floored to the step size so the
// engine can never oversell, and prices are ceiled to the tick size so
// protective levels are never rejected for sitting below tick
// granularity. Historical variants mixed floor/ceil/half-up per order
// type; one rule per quantity-class is applied uniformly here.

// RoundQuantity floors raw to a multiple of step. A non-positive step
// returns raw unchanged; callers are responsible for rejecting results
// below the venue's minQty/minNotional.
func RoundQuantity(raw, step float64) float64 {
	if step <= 0 {
		return raw
	}
	d := decimal.NewFromFloat(raw)
	s := decimal.NewFromFloat(step)
	out, _ := d.Div(s).Floor().Mul(s).Float64()
	return out
}

// RoundPrice ceils raw to a multiple of tick.
func RoundPrice(raw, tick float64) float64 {
	if tick <= 0 {
		return raw
	}
	d := decimal.NewFromFloat(raw)
	t := decimal.NewFromFloat(tick)
	out, _ := d.Div(t).Ceil().Mul(t).Float64()
	return out
}
