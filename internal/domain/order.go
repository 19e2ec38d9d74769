package domain

import "time"

type OrderType string

const (
	OrderMarket     OrderType = "MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderStopMarket OrderType = "STOP_MARKET"
)

type OrderSide string

const (
	OrderBuy  OrderSide = "BUY"
	OrderSell OrderSide = "SELL"
)

// OrderRequest is a typed order submission. Price is only meaningful
// for limit orders, StopPrice for stop-markets.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      float64
	Price         float64
	StopPrice     float64
	ReduceOnly    bool
	TimeInForce   string
	ClientOrderID string
}

// OrderAck is the immediate response to an order submission. Executed
// fields can be stale or zero for market orders; callers that need the
// real fill must read the order back.
type OrderAck struct {
	OrderID     string
	Status      string
	ExecutedQty float64
	AvgPrice    float64
}

// OrderStatus is the read-back state of a previously submitted order.
type OrderStatus struct {
	OrderID     string
	Status      string
	ExecutedQty float64
	AvgPrice    float64
}

// OpenOrder is one resting order as returned by the open-orders query.
type OpenOrder struct {
	OrderID    string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Quantity   float64
	Price      float64
	StopPrice  float64
	ReduceOnly bool
}

// SymbolRules are the venue's trading constraints for one symbol.
type SymbolRules struct {
	Symbol      string
	StepSize    float64
	TickSize    float64
	MinQty      float64
	MinNotional float64
}

// FillEvent is a user-stream order update pushed by the venue.
type FillEvent struct {
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Status    string
	Quantity  float64
	LastPrice float64
	Time      time.Time
}

// TradeRecord is one journal row: an entry, a switch-close, or a
// monitor-driven exit.
type TradeRecord struct {
	ID        int64
	Symbol    string
	Side      Side
	Kind      string // entry | close | tp1 | tp2 | sl
	Quantity  float64
	Price     float64
	PnLPct    float64
	CreatedAt time.Time
}
