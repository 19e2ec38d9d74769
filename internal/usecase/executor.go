package usecase

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/metrics"
	"go.uber.org/zap"
)

// SkipReason tags a non-filled entry outcome. None of these are
// errors; callers map them to a user-visible status.
type SkipReason string

const (
	SkipDryRun        SkipReason = "dry_run"
	SkipAlreadyLong   SkipReason = "already_long"
	SkipAlreadyShort  SkipReason = "already_short"
	SkipCloseFailed   SkipReason = "close_failed"
	SkipCalcZero      SkipReason = "calc_zero"
	SkipOpenFailed    SkipReason = "open_failed"
	SkipAPIError      SkipReason = "api_error"
	SkipUnknownAction SkipReason = "unknown_action"
)

// EntryResult is the tagged outcome of an entry attempt: either a
// confirmed fill or a skip with a reason.
type EntryResult struct {
	Filled     bool       `json:"filled"`
	Quantity   float64    `json:"quantity,omitempty"`
	EntryPrice float64    `json:"entry_price,omitempty"`
	Skipped    SkipReason `json:"skipped,omitempty"`
}

func skipped(reason SkipReason) EntryResult {
	metrics.IncEntry(string(reason))
	return EntryResult{Skipped: reason}
}

// Executor opens positions: it sizes the order from the free quote
// balance, submits the market entry, confirms it through the
// reconciler, and attaches the take-profit/stop-loss bracket.
type Executor struct {
	gateway    domain.Gateway
	reconciler *Reconciler
	state      *EngineState
	tradeRepo  domain.TradeRepository
	cfg        EngineConfig
	logger     *zap.Logger
}

func NewExecutor(
	gateway domain.Gateway,
	reconciler *Reconciler,
	state *EngineState,
	tradeRepo domain.TradeRepository,
	cfg EngineConfig,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		gateway:    gateway,
		reconciler: reconciler,
		state:      state,
		tradeRepo:  tradeRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Enter opens a position on the requested side. It is idempotent: a
// position already on that side is a no-op skip. An opposing position
// is closed first and confirmed flat before sizing the new order.
func (e *Executor) Enter(ctx context.Context, symbol string, side domain.Side) EntryResult {
	if e.cfg.DryRun {
		e.logger.Info("Dry run: entry suppressed",
			zap.String("symbol", symbol),
			zap.String("side", string(side)))
		return skipped(SkipDryRun)
	}

	// Leverage and margin mode often fail when already set; not fatal.
	if err := e.gateway.SetLeverage(ctx, symbol, e.cfg.Leverage); err != nil {
		e.logger.Warn("Set leverage failed", zap.String("symbol", symbol), zap.Error(err))
	}
	if err := e.gateway.SetMarginMode(ctx, symbol, e.cfg.MarginType); err != nil {
		e.logger.Warn("Set margin mode failed", zap.String("symbol", symbol), zap.Error(err))
	}

	if err := e.CancelReduceOnlyOrders(ctx, symbol); err != nil {
		e.logger.Error("Failed to list open orders", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError)
	}

	amt, err := e.gateway.FetchPositionAmount(ctx, symbol)
	if err != nil {
		e.logger.Error("Position fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError)
	}

	switch {
	case side == domain.SideLong && amt > 0:
		e.logger.Info("Already long, skipping entry", zap.String("symbol", symbol))
		return skipped(SkipAlreadyLong)
	case side == domain.SideShort && amt < 0:
		e.logger.Info("Already short, skipping entry", zap.String("symbol", symbol))
		return skipped(SkipAlreadyShort)
	}

	if amt != 0 {
		if res, ok := e.closeOpposing(ctx, symbol, amt, side); !ok {
			return res
		}
	}

	qty, refPrice, rules, res := e.computeOrderQuantity(ctx, symbol)
	if res != nil {
		return *res
	}

	entryQty, entryPrice, res := e.openPosition(ctx, symbol, side, qty, refPrice)
	if res != nil {
		return *res
	}

	brackets := BuildBrackets(e.cfg, side, entryPrice, entryQty, rules)
	e.placeBracketOrders(ctx, symbol, side, brackets)

	pos := domain.Position{
		Symbol:     symbol,
		Side:       side,
		Quantity:   entryQty,
		EntryPrice: entryPrice,
		EnteredAt:  time.Now(),
	}
	e.state.ResetForEntry(pos, brackets)

	if err := e.tradeRepo.SaveTrade(ctx, &domain.TradeRecord{
		Symbol:    symbol,
		Side:      side,
		Kind:      "entry",
		Quantity:  entryQty,
		Price:     entryPrice,
		CreatedAt: time.Now(),
	}); err != nil {
		e.logger.Error("Failed to save entry trade", zap.Error(err))
	}

	metrics.IncEntry("filled")
	e.logger.Info("Entry executed",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", entryQty),
		zap.Float64("entry_price", entryPrice))

	return EntryResult{Filled: true, Quantity: entryQty, EntryPrice: entryPrice}
}

// CancelReduceOnlyOrders removes stale TP/SL orders left over from a
// prior position so no orphaned exit can fire against the new one.
func (e *Executor) CancelReduceOnlyOrders(ctx context.Context, symbol string) error {
	orders, err := e.gateway.FetchOpenOrders(ctx, symbol)
	if err != nil {
		return err
	}
	for _, o := range orders {
		if !o.ReduceOnly {
			continue
		}
		if err := e.gateway.CancelOrder(ctx, symbol, o.OrderID); err != nil {
			e.logger.Warn("Failed to cancel reduce-only order",
				zap.String("symbol", symbol),
				zap.String("order_id", o.OrderID),
				zap.Error(err))
			continue
		}
		e.logger.Info("Cancelled reduce-only order",
			zap.String("symbol", symbol),
			zap.String("order_id", o.OrderID))
	}
	return nil
}

func (e *Executor) closeOpposing(ctx context.Context, symbol string, amt float64, side domain.Side) (EntryResult, bool) {
	closeQty := math.Abs(amt)
	e.logger.Info("Closing opposing position",
		zap.String("symbol", symbol),
		zap.Float64("quantity", closeQty))

	_, err := e.gateway.CreateOrder(ctx, &domain.OrderRequest{
		Symbol:        symbol,
		Side:          entryOrderSide(side),
		Type:          domain.OrderMarket,
		Quantity:      closeQty,
		ReduceOnly:    true,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		e.logger.Error("Close order failed", zap.String("symbol", symbol), zap.Error(err))
		return skipped(SkipAPIError), false
	}

	if !e.reconciler.WaitForPosition(ctx, symbol, SignZero, e.cfg.ReconcileTimeout, e.cfg.ReconcileInterval) {
		return skipped(SkipCloseFailed), false
	}
	return EntryResult{}, true
}

// computeOrderQuantity sizes the entry from the free quote balance and
// also returns the ticker price the sizing was based on.
func (e *Executor) computeOrderQuantity(ctx context.Context, symbol string) (float64, float64, *domain.SymbolRules, *EntryResult) {
	rules, err := e.gateway.FetchSymbolRules(ctx, symbol)
	if err != nil {
		e.logger.Error("Symbol rules fetch failed", zap.String("symbol", symbol), zap.Error(err))
		res := skipped(SkipAPIError)
		return 0, 0, nil, &res
	}

	free, err := e.gateway.FetchFreeBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		e.logger.Error("Balance fetch failed", zap.Error(err))
		res := skipped(SkipAPIError)
		return 0, 0, nil, &res
	}

	price, err := e.gateway.FetchTicker(ctx, symbol)
	if err != nil || price <= 0 {
		e.logger.Error("Ticker fetch failed", zap.String("symbol", symbol), zap.Error(err))
		res := skipped(SkipAPIError)
		return 0, 0, nil, &res
	}

	alloc := free * e.cfg.Allocation
	qty := RoundQuantity(alloc/price, rules.StepSize)

	e.logger.Info("Order sizing",
		zap.String("symbol", symbol),
		zap.Float64("free_balance", free),
		zap.Float64("allocation", alloc),
		zap.Float64("price", price),
		zap.Float64("quantity", qty))

	if qty < rules.MinQty || qty*price < rules.MinNotional {
		e.logger.Warn("Computed quantity below venue minimums",
			zap.Float64("quantity", qty),
			zap.Float64("min_qty", rules.MinQty),
			zap.Float64("notional", qty*price),
			zap.Float64("min_notional", rules.MinNotional))
		res := skipped(SkipCalcZero)
		return 0, 0, nil, &res
	}

	return qty, price, rules, nil
}

func (e *Executor) openPosition(ctx context.Context, symbol string, side domain.Side, qty, refPrice float64) (float64, float64, *EntryResult) {
	ack, err := e.gateway.CreateOrder(ctx, &domain.OrderRequest{
		Symbol:        symbol,
		Side:          entryOrderSide(side),
		Type:          domain.OrderMarket,
		Quantity:      qty,
		ClientOrderID: newClientOrderID(),
	})
	if err != nil {
		e.logger.Error("Entry order failed", zap.String("symbol", symbol), zap.Error(err))
		res := skipped(SkipAPIError)
		return 0, 0, &res
	}

	target := SignPositive
	if side == domain.SideShort {
		target = SignNegative
	}
	if !e.reconciler.WaitForPosition(ctx, symbol, target, e.cfg.ReconcileTimeout, e.cfg.ReconcileInterval) {
		res := skipped(SkipOpenFailed)
		return 0, 0, &res
	}

	// The ack's executed fields can be stale or zero for market
	// orders; read the order back for the real fill. When both are
	// empty, fall back to the submitted quantity and the ticker price
	// the sizing used, so brackets are never derived from price zero.
	entryQty, entryPrice := ack.ExecutedQty, ack.AvgPrice
	if ord, err := e.gateway.FetchOrder(ctx, symbol, ack.OrderID); err != nil {
		e.logger.Warn("Order read-back failed, using ack fields",
			zap.String("order_id", ack.OrderID),
			zap.Error(err))
	} else if ord.ExecutedQty > 0 {
		entryQty, entryPrice = ord.ExecutedQty, ord.AvgPrice
	}
	if entryQty <= 0 {
		entryQty = qty
	}
	if entryPrice <= 0 {
		entryPrice = refPrice
	}

	return entryQty, entryPrice, nil
}

// placeBracketOrders rests the three exit orders. Each placement is
// independently fault-tolerant: the monitor loop remains the
// authoritative backstop even if a resting order is rejected.
func (e *Executor) placeBracketOrders(ctx context.Context, symbol string, side domain.Side, brackets domain.BracketSet) {
	exit := exitOrderSide(side)

	for _, lvl := range []domain.BracketLevel{brackets.TP1, brackets.TP2} {
		if lvl.Quantity <= 0 {
			continue
		}
		_, err := e.gateway.CreateOrder(ctx, &domain.OrderRequest{
			Symbol:        symbol,
			Side:          exit,
			Type:          domain.OrderLimit,
			Quantity:      lvl.Quantity,
			Price:         lvl.TriggerPrice,
			ReduceOnly:    true,
			TimeInForce:   "GTC",
			ClientOrderID: newClientOrderID(),
		})
		if err != nil {
			e.logger.Error("Failed to place take-profit order",
				zap.String("kind", string(lvl.Kind)),
				zap.Float64("price", lvl.TriggerPrice),
				zap.Error(err))
			continue
		}
		e.logger.Info("Placed take-profit order",
			zap.String("kind", string(lvl.Kind)),
			zap.Float64("quantity", lvl.Quantity),
			zap.Float64("price", lvl.TriggerPrice))
	}

	if brackets.SL.Quantity > 0 {
		_, err := e.gateway.CreateOrder(ctx, &domain.OrderRequest{
			Symbol:        symbol,
			Side:          exit,
			Type:          domain.OrderStopMarket,
			Quantity:      brackets.SL.Quantity,
			StopPrice:     brackets.SL.TriggerPrice,
			ReduceOnly:    true,
			ClientOrderID: newClientOrderID(),
		})
		if err != nil {
			e.logger.Error("Failed to place stop-loss order",
				zap.Float64("stop_price", brackets.SL.TriggerPrice),
				zap.Error(err))
		} else {
			e.logger.Info("Placed stop-loss order",
				zap.Float64("quantity", brackets.SL.Quantity),
				zap.Float64("stop_price", brackets.SL.TriggerPrice))
		}
	}
}

// BuildBrackets derives the three exit levels from the confirmed fill.
// tp1 takes TP1Part of the fill, tp2 takes TP2Part of what remains
// after tp1, and the stop covers the full fill (reduce-only caps it at
// whatever is actually left when it triggers). All derivation runs on
// decimals so percentage offsets of a clean entry price stay clean
// before tick rounding. A nil rules skips step/tick rounding.
func BuildBrackets(cfg EngineConfig, side domain.Side, entryPrice, filledQty float64, rules *domain.SymbolRules) domain.BracketSet {
	var step, tick float64
	if rules != nil {
		step, tick = rules.StepSize, rules.TickSize
	}

	dir := 1.0
	if side == domain.SideShort {
		dir = -1.0
	}

	tp1Qty := RoundQuantity(mulExact(filledQty, cfg.TP1Part), step)
	tp2Qty := RoundQuantity(mulExact(filledQty-tp1Qty, cfg.TP2Part), step)

	return domain.BracketSet{
		TP1: domain.BracketLevel{
			Kind:         domain.BracketTP1,
			TriggerPrice: RoundPrice(offsetPct(entryPrice, dir*cfg.TP1Pct), tick),
			Quantity:     tp1Qty,
		},
		TP2: domain.BracketLevel{
			Kind:         domain.BracketTP2,
			TriggerPrice: RoundPrice(offsetPct(entryPrice, dir*cfg.TP2Pct), tick),
			Quantity:     tp2Qty,
		},
		SL: domain.BracketLevel{
			Kind:         domain.BracketSL,
			TriggerPrice: RoundPrice(offsetPct(entryPrice, -dir*cfg.SLPct), tick),
			Quantity:     filledQty,
		},
	}
}

// offsetPct returns price shifted by pct percent, computed in decimal.
func offsetPct(price, pct float64) float64 {
	p := decimal.NewFromFloat(price)
	m := decimal.NewFromInt(1).Add(decimal.NewFromFloat(pct).Div(decimal.NewFromInt(100)))
	out, _ := p.Mul(m).Float64()
	return out
}

func mulExact(a, b float64) float64 {
	out, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return out
}

func entryOrderSide(side domain.Side) domain.OrderSide {
	if side == domain.SideShort {
		return domain.OrderSell
	}
	return domain.OrderBuy
}

func exitOrderSide(side domain.Side) domain.OrderSide {
	if side == domain.SideShort {
		return domain.OrderBuy
	}
	return domain.OrderSell
}

func newClientOrderID() string {
	return "plm-" + uuid.NewString()
}
