package domain

import "context"

// Gateway is the exchange surface the engine depends on. All calls are
// blocking I/O and can fail with a transport or venue-rejection error.
type Gateway interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol, mode string) error
	FetchFreeBalance(ctx context.Context, asset string) (float64, error)
	FetchTicker(ctx context.Context, symbol string) (float64, error)
	FetchSymbolRules(ctx context.Context, symbol string) (*SymbolRules, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]*OpenOrder, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error)
	// FetchPositionAmount returns the venue-signed position quantity
	// (positive long, negative short, zero flat).
	FetchPositionAmount(ctx context.Context, symbol string) (float64, error)
	FetchOrder(ctx context.Context, symbol, orderID string) (*OrderStatus, error)
	// OnFill registers a callback for user-stream order updates.
	OnFill(callback func(FillEvent))
}

// TradeRepository is the persistence surface for the trade journal and
// daily-stat snapshots.
type TradeRepository interface {
	SaveTrade(ctx context.Context, rec *TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]*TradeRecord, error)
	SaveDailyStats(ctx context.Context, stats *DailyStats) error
}
