package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

// MockGateway is a scriptable in-memory exchange. With FillOnCreate set,
// market orders move the position immediately: reduce-only markets
// flatten it, plain markets set it to the order quantity with the
// order's sign.
type MockGateway struct {
	mu sync.Mutex

	Balance     float64
	Price       float64
	PositionAmt float64
	Rules       *domain.SymbolRules
	Open        []*domain.OpenOrder

	// AmtSequence, when non-empty, overrides PositionAmt one read at a
	// time; the last value sticks.
	AmtSequence []float64

	FillOnCreate bool
	// AckZero makes CreateOrder acknowledge with empty executed
	// fields, the way venues answer an asynchronous market fill.
	AckZero   bool
	CreateErr error

	Created       []*domain.OrderRequest
	Cancelled     []string
	PositionReads int
	TickerReads   int

	fillCb func(domain.FillEvent)
}

func (m *MockGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func (m *MockGateway) SetMarginMode(ctx context.Context, symbol, mode string) error {
	return nil
}

func (m *MockGateway) FetchFreeBalance(ctx context.Context, asset string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balance, nil
}

func (m *MockGateway) FetchTicker(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TickerReads++
	return m.Price, nil
}

func (m *MockGateway) FetchSymbolRules(ctx context.Context, symbol string) (*domain.SymbolRules, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Rules == nil {
		return nil, fmt.Errorf("no rules for %s", symbol)
	}
	return m.Rules, nil
}

func (m *MockGateway) FetchOpenOrders(ctx context.Context, symbol string) ([]*domain.OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Open, nil
}

func (m *MockGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, orderID)
	return nil
}

func (m *MockGateway) CreateOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, req)

	if m.FillOnCreate && req.Type == domain.OrderMarket {
		if req.ReduceOnly {
			m.PositionAmt = 0
		} else if req.Side == domain.OrderBuy {
			m.PositionAmt = req.Quantity
		} else {
			m.PositionAmt = -req.Quantity
		}
	}

	ack := &domain.OrderAck{
		OrderID:     fmt.Sprintf("%d", len(m.Created)),
		Status:      "FILLED",
		ExecutedQty: req.Quantity,
		AvgPrice:    m.Price,
	}
	if m.AckZero {
		ack.Status = "NEW"
		ack.ExecutedQty = 0
		ack.AvgPrice = 0
	}
	return ack, nil
}

func (m *MockGateway) FetchPositionAmount(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PositionReads++
	if len(m.AmtSequence) > 0 {
		amt := m.AmtSequence[0]
		if len(m.AmtSequence) > 1 {
			m.AmtSequence = m.AmtSequence[1:]
		}
		return amt, nil
	}
	return m.PositionAmt, nil
}

func (m *MockGateway) FetchOrder(ctx context.Context, symbol, orderID string) (*domain.OrderStatus, error) {
	return &domain.OrderStatus{OrderID: orderID, Status: "FILLED"}, nil
}

func (m *MockGateway) OnFill(callback func(domain.FillEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fillCb = callback
}

func (m *MockGateway) EmitFill(ev domain.FillEvent) {
	m.mu.Lock()
	cb := m.fillCb
	m.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// CreatedOrders returns a copy of the submission log.
func (m *MockGateway) CreatedOrders() []*domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.OrderRequest, len(m.Created))
	copy(out, m.Created)
	return out
}

type MockTradeRepo struct {
	mu     sync.Mutex
	Trades []*domain.TradeRecord
	Stats  []*domain.DailyStats
}

func (r *MockTradeRepo) SaveTrade(ctx context.Context, rec *domain.TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.Trades = append(r.Trades, &cp)
	return nil
}

func (r *MockTradeRepo) ListTrades(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.Trades) {
		limit = len(r.Trades)
	}
	out := make([]*domain.TradeRecord, limit)
	copy(out, r.Trades[:limit])
	return out, nil
}

func (r *MockTradeRepo) SaveDailyStats(ctx context.Context, stats *domain.DailyStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *stats
	r.Stats = append(r.Stats, &cp)
	return nil
}

// TradeKinds returns the journal's kind column in insertion order.
func (r *MockTradeRepo) TradeKinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.Trades))
	for i, t := range r.Trades {
		kinds[i] = t.Kind
	}
	return kinds
}

func testConfig() usecase.EngineConfig {
	cfg := usecase.DefaultEngineConfig("ETHUSDT")
	cfg.ReconcileTimeout = 200 * time.Millisecond
	cfg.ReconcileInterval = 2 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func testRules() *domain.SymbolRules {
	return &domain.SymbolRules{
		Symbol:      "ETHUSDT",
		StepSize:    0.001,
		TickSize:    0.01,
		MinQty:      0.001,
		MinNotional: 5,
	}
}

func newTestExecutor(gw *MockGateway, repo *MockTradeRepo, cfg usecase.EngineConfig) (*usecase.Executor, *usecase.EngineState) {
	logger := zap.NewNop()
	state := usecase.NewEngineState(cfg.Symbol)
	rec := usecase.NewReconciler(gw, logger)
	return usecase.NewExecutor(gw, rec, state, repo, cfg, logger), state
}
